package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"study-assistant/internal/ai"
	"study-assistant/internal/database"
	"study-assistant/internal/logger"
	"study-assistant/internal/telemetry"
	"study-assistant/models"
)

const (
	DefaultIndexPrefix     = "analysis:vectors"
	DefaultSimilarityLimit = 3

	chunkFieldPrefix = "chunk:"
)

// storedVector is the JSON value of one hash field.
type storedVector struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

// VectorIndex keeps one hash per document: field chunk:<i> holds the i-th
// chunk's text and embedding. Indexing the same document concurrently is last
// write wins per field.
type VectorIndex struct {
	store      database.HashStore
	embeddings ai.Embeddings
	prefix     string
	limit      int
	metrics    *telemetry.Metrics
}

type VectorIndexOption func(*VectorIndex)

func WithIndexPrefix(prefix string) VectorIndexOption {
	return func(v *VectorIndex) {
		if prefix != "" {
			v.prefix = strings.TrimSuffix(prefix, ":")
		}
	}
}

// WithDefaultLimit sets the result count used when a search passes limit <= 0.
func WithDefaultLimit(limit int) VectorIndexOption {
	return func(v *VectorIndex) {
		if limit > 0 {
			v.limit = limit
		}
	}
}

func WithIndexMetrics(m *telemetry.Metrics) VectorIndexOption {
	return func(v *VectorIndex) { v.metrics = m }
}

func NewVectorIndex(store database.HashStore, embeddings ai.Embeddings, opts ...VectorIndexOption) *VectorIndex {
	v := &VectorIndex{
		store:      store,
		embeddings: embeddings,
		prefix:     DefaultIndexPrefix,
		limit:      DefaultSimilarityLimit,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IndexKey returns the store key holding the document's vectors.
func (v *VectorIndex) IndexKey(documentID string) string {
	return v.prefix + ":" + documentID
}

// ResetDocument removes every vector of the document. Missing documents are fine.
func (v *VectorIndex) ResetDocument(ctx context.Context, documentID string) error {
	err := v.store.Del(ctx, v.IndexKey(documentID))
	v.metrics.RecordIndexOperation(ctx, "reset", err == nil)
	if err != nil {
		return &EmbeddingIndexError{Op: "reset", DocumentID: documentID, Err: err}
	}
	return nil
}

// IndexChunks embeds texts and writes them as chunk:0..n-1 in one pipelined
// batch. It does not clear fields left over from a longer previous run; call
// ResetDocument first for a clean index.
func (v *VectorIndex) IndexChunks(ctx context.Context, documentID string, texts []string) (models.IndexSummary, error) {
	if len(texts) == 0 {
		return models.IndexSummary{}, nil
	}

	vectors, err := v.embeddings.EmbedDocuments(ctx, texts)
	if err != nil {
		return models.IndexSummary{}, &EmbeddingIndexError{Op: "embed", DocumentID: documentID, Err: err}
	}
	if len(vectors) != len(texts) {
		return models.IndexSummary{}, &EmbeddingIndexError{
			Op:         "embed",
			DocumentID: documentID,
			Err:        fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts)),
		}
	}

	values := make(map[string]string, len(texts))
	for i, vector := range vectors {
		payload, err := json.Marshal(storedVector{Text: texts[i], Vector: vector})
		if err != nil {
			return models.IndexSummary{}, &EmbeddingIndexError{Op: "encode", DocumentID: documentID, Err: err}
		}
		values[chunkField(i)] = string(payload)
	}

	err = v.store.HSetBulk(ctx, v.IndexKey(documentID), values)
	v.metrics.RecordIndexOperation(ctx, "index_chunks", err == nil)
	if err != nil {
		return models.IndexSummary{}, &EmbeddingIndexError{Op: "index_chunks", DocumentID: documentID, Err: err}
	}

	return models.IndexSummary{VectorCount: len(vectors), Dimensions: len(vectors[0])}, nil
}

// GetCachedIndexSummary reads the stored vector count and the length of
// chunk:0 without embedding anything. It never fails: store errors read as an
// empty index and a corrupt chunk:0 reports zero dimensions.
func (v *VectorIndex) GetCachedIndexSummary(ctx context.Context, documentID string) models.IndexSummary {
	key := v.IndexKey(documentID)

	count, err := v.store.HLen(ctx, key)
	if err != nil {
		logger.Warn("Failed to read index size", "document_id", documentID, "error", err)
		return models.IndexSummary{}
	}
	if count <= 0 {
		return models.IndexSummary{}
	}

	first, err := v.store.HGet(ctx, key, chunkField(0))
	if errors.Is(err, database.ErrNotFound) {
		return models.IndexSummary{VectorCount: int(count)}
	}
	if err != nil {
		logger.Warn("Failed to read first index entry", "document_id", documentID, "error", err)
		return models.IndexSummary{}
	}

	var entry storedVector
	if err := json.Unmarshal([]byte(first), &entry); err != nil {
		logger.Warn("corrupt index entry", "document_id", documentID, "field", chunkField(0), "error", err)
		return models.IndexSummary{VectorCount: int(count)}
	}
	return models.IndexSummary{VectorCount: int(count), Dimensions: len(entry.Vector)}
}

// EnsureDocumentIndexed returns the cached summary when vectors exist and
// indexes texts otherwise.
func (v *VectorIndex) EnsureDocumentIndexed(ctx context.Context, documentID string, texts []string) (models.IndexSummary, error) {
	if cached := v.GetCachedIndexSummary(ctx, documentID); cached.VectorCount > 0 {
		return cached, nil
	}
	return v.IndexChunks(ctx, documentID, texts)
}

// SimilaritySearch scores every stored chunk against query and returns the
// best limit results, highest first. Ties keep chunk order.
func (v *VectorIndex) SimilaritySearch(ctx context.Context, documentID, query string, limit int) ([]models.SimilarityResult, error) {
	if limit <= 0 {
		limit = v.limit
	}

	queryVector, err := v.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &EmbeddingIndexError{Op: "embed", DocumentID: documentID, Err: err}
	}

	entries, err := v.store.HGetAll(ctx, v.IndexKey(documentID))
	v.metrics.RecordIndexOperation(ctx, "search", err == nil)
	if err != nil {
		return nil, &EmbeddingIndexError{Op: "search", DocumentID: documentID, Err: err}
	}

	results := make([]models.SimilarityResult, 0, len(entries))
	for field, raw := range entries {
		var entry storedVector
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			logger.Warn("corrupt index entry", "document_id", documentID, "field", field, "error", err)
			continue
		}
		if len(entry.Vector) != len(queryVector) {
			logger.Debug("Vector length mismatch, scoring common prefix",
				"document_id", documentID, "field", field,
				"stored", len(entry.Vector), "query", len(queryVector))
		}

		score := CosineSimilarity(queryVector, entry.Vector)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		results = append(results, models.SimilarityResult{ID: field, Text: entry.Text, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return fieldLess(results[i].ID, results[j].ID)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func chunkField(i int) string {
	return chunkFieldPrefix + strconv.Itoa(i)
}

// fieldLess orders chunk:2 before chunk:10.
func fieldLess(a, b string) bool {
	na, errA := strconv.Atoi(strings.TrimPrefix(a, chunkFieldPrefix))
	nb, errB := strconv.Atoi(strings.TrimPrefix(b, chunkFieldPrefix))
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
