package services

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"

	"study-assistant/internal/logger"
)

const (
	MimeTypePDF       = "application/pdf"
	MimeTypePlainText = "text/plain"
)

type ParseMeta struct {
	NumPages         *int   `json:"numPages,omitempty"`
	FileSize         int    `json:"fileSize"`
	DetectedMimeType string `json:"detectedMimeType"`
}

type ParseResult struct {
	Text string
	Meta ParseMeta
}

// DocumentParser turns uploaded bytes into plain text.
type DocumentParser struct{}

func NewDocumentParser() *DocumentParser {
	return &DocumentParser{}
}

// Parse dispatches on the declared MIME type. Content is never sniffed.
func (p *DocumentParser) Parse(ctx context.Context, data []byte, mimeType string) (*ParseResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	switch NormalizeMimeType(mimeType) {
	case MimeTypePDF:
		return p.parsePDF(ctx, data)
	case MimeTypePlainText:
		return parsePlainText(data), nil
	default:
		return nil, &UnsupportedTypeError{MimeType: mimeType}
	}
}

// NormalizeMimeType lowercases the media type and drops parameters such as charset.
func NormalizeMimeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType, _, _ = strings.Cut(mimeType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func parsePlainText(data []byte) *ParseResult {
	text := strings.ToValidUTF8(string(data), "�")
	return &ParseResult{
		Text: strings.TrimSpace(text),
		Meta: ParseMeta{
			FileSize:         len(data),
			DetectedMimeType: MimeTypePlainText,
		},
	}
}

func (p *DocumentParser) parsePDF(ctx context.Context, data []byte) (result *ParseResult, err error) {
	// ledongthuc/pdf panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: pdf reader panic: %v", ErrParseFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create PDF reader: %v", ErrParseFailed, err)
	}

	pages := reader.NumPage()
	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "page", i, "error", err)
			continue
		}
		texts = append(texts, text)
	}

	return &ParseResult{
		Text: strings.TrimSpace(strings.Join(texts, "\n")),
		Meta: ParseMeta{
			NumPages:         &pages,
			FileSize:         len(data),
			DetectedMimeType: MimeTypePDF,
		},
	}, nil
}
