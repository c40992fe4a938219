package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"study-assistant/internal/config"
	"study-assistant/utils"
)

// DefaultDimensions is the vector length of LocalEmbeddings when none is given.
const DefaultDimensions = 256

// Embeddings maps texts to fixed-length vectors.
type Embeddings interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	Dimensions() int
}

// LocalEmbeddings is a feature-hashing bag of words: every token bumps one
// bucket chosen by the first four bytes of its SHA-256 digest. It is not a
// semantic model and needs no network access.
type LocalEmbeddings struct {
	dims      int
	tokenizer *utils.Tokenizer
}

func NewLocalEmbeddings(dims int) *LocalEmbeddings {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &LocalEmbeddings{dims: dims, tokenizer: utils.NewTokenizer()}
}

func (e *LocalEmbeddings) Dimensions() int { return e.dims }

func (e *LocalEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *LocalEmbeddings) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	return e.embed(text), nil
}

func (e *LocalEmbeddings) embed(text string) []float64 {
	vector := make([]float64, e.dims)
	for _, token := range e.tokenizer.Tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(e.dims)
		vector[bucket]++
	}
	return vector
}

// NewEmbeddings returns the provider selected by EMBEDDINGS_PROVIDER.
// Default provider is the local hashing embedder.
func NewEmbeddings(ctx context.Context, cfg *config.Config) (Embeddings, func(), error) {
	switch strings.ToLower(cfg.EmbeddingsProvider) {
	case "local", "":
		return NewLocalEmbeddings(cfg.VectorDimensions), func() {}, nil

	case "gemini", "google":
		g, err := NewGeminiEmbeddings(ctx, GeminiEmbeddingsConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GoogleEmbeddingsModel,
			RPM:    cfg.EmbeddingsRPM,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}
