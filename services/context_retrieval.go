package services

import (
	"context"
	"fmt"
	"strings"

	"study-assistant/internal/logger"
	"study-assistant/models"
)

// DefaultContextLimit is the number of chunks handed to a chat prompt.
const DefaultContextLimit = 4

// ContextForQuery returns the best matching chunks of a document formatted as
// numbered prompt context. It returns "" when nothing matches or the index
// cannot be read; retrieval failures never block a chat turn.
func (s *DocumentService) ContextForQuery(ctx context.Context, documentID, query string, limit int) string {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	neighbors, err := s.index.SimilaritySearch(ctx, documentID, query, limit)
	if err != nil {
		logger.Warn("Failed to load retrieval context", "document_id", documentID, "error", err)
		return ""
	}
	return FormatContext(neighbors)
}

// FormatContext renders "#1 (Score 0.913): text" blocks separated by blank lines.
func FormatContext(neighbors []models.SimilarityResult) string {
	blocks := make([]string, len(neighbors))
	for i, n := range neighbors {
		blocks[i] = fmt.Sprintf("#%d (Score %.3f): %s", i+1, n.Score, n.Text)
	}
	return strings.Join(blocks, "\n\n")
}
