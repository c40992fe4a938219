package services

import (
	"fmt"
	"strings"

	"study-assistant/models"
	"study-assistant/utils"
)

const (
	DefaultChunkSize    = 200
	DefaultChunkOverlap = 40
)

// ChunkOptions controls the sliding token window. Zero values fall back to the defaults.
type ChunkOptions struct {
	ChunkSize int
	Overlap   int
}

// DefaultChunkOptions returns the 200/40 window.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{ChunkSize: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
		if o.Overlap == 0 {
			o.Overlap = DefaultChunkOverlap
		}
	}
	return o
}

func (o ChunkOptions) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkOptions, o.ChunkSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkOptions, o.Overlap)
	}
	if o.Overlap >= o.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunkOptions, o.Overlap, o.ChunkSize)
	}
	return nil
}

// ChunkTokens cuts tokens into windows of ChunkSize that advance by
// ChunkSize-Overlap. The final window may be shorter and ends exactly at the
// last token.
func ChunkTokens(tokens []string, opts ChunkOptions) ([]models.TextChunk, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	chunks := make([]models.TextChunk, 0, expectedChunkCount(len(tokens), opts))
	for start, index := 0, 0; start < len(tokens); index++ {
		end := start + opts.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, models.TextChunk{
			ID:         fmt.Sprintf("chunk-%d", index),
			Text:       strings.Join(tokens[start:end], " "),
			TokenCount: end - start,
			StartToken: start,
			EndToken:   end,
		})

		if end == len(tokens) {
			break
		}
		start = end - opts.Overlap
	}
	return chunks, nil
}

// ChunkText tokenizes text with the default tokenizer before chunking.
func ChunkText(text string, opts ChunkOptions) ([]models.TextChunk, error) {
	return ChunkTokens(utils.Tokenize(text), opts)
}

func expectedChunkCount(n int, opts ChunkOptions) int {
	if n == 0 {
		return 0
	}
	if n <= opts.ChunkSize {
		return 1
	}
	stride := opts.ChunkSize - opts.Overlap
	return (n - opts.Overlap + stride - 1) / stride
}
