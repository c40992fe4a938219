package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"study-assistant/internal/database"
	"study-assistant/internal/logger"
	"study-assistant/models"
	"study-assistant/utils"
)

const (
	DefaultDocumentsKey = "analysis:documents"

	brotliRecordPrefix = "br:"
)

// DocumentRepository stores analysis records as fields of a single hash,
// keyed by document id.
type DocumentRepository struct {
	store    database.HashStore
	key      string
	compress bool
}

type DocumentRepositoryOption func(*DocumentRepository)

func WithDocumentsKey(key string) DocumentRepositoryOption {
	return func(r *DocumentRepository) {
		if key != "" {
			r.key = key
		}
	}
}

// WithRecordCompression stores large records brotli-compressed. Reads accept
// both forms regardless of this setting.
func WithRecordCompression(enabled bool) DocumentRepositoryOption {
	return func(r *DocumentRepository) { r.compress = enabled }
}

func NewDocumentRepository(store database.HashStore, opts ...DocumentRepositoryOption) *DocumentRepository {
	r := &DocumentRepository{store: store, key: DefaultDocumentsKey}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DocumentRepository) Save(ctx context.Context, record *models.DocumentAnalysisResponse) error {
	raw, err := r.encode(record)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.key, record.DocumentID, raw); err != nil {
		return fmt.Errorf("failed to save document %s: %w", record.DocumentID, err)
	}
	return nil
}

// Get returns ErrDocumentNotFound for unknown ids.
func (r *DocumentRepository) Get(ctx context.Context, documentID string) (*models.DocumentAnalysisResponse, error) {
	raw, err := r.store.HGet(ctx, r.key, documentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	return decodeRecord(raw)
}

// All returns every readable record, newest first. Unreadable records are logged and skipped.
func (r *DocumentRepository) All(ctx context.Context) ([]*models.DocumentAnalysisResponse, error) {
	entries, err := r.store.HGetAll(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	records := make([]*models.DocumentAnalysisResponse, 0, len(entries))
	for id, raw := range entries {
		record, err := decodeRecord(raw)
		if err != nil {
			logger.Warn("Skipping unreadable document record", "document_id", id, "error", err)
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// List returns the summaries of all records, newest first.
func (r *DocumentRepository) List(ctx context.Context) ([]models.DocumentSummary, error) {
	records, err := r.All(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.DocumentSummary, len(records))
	for i, record := range records {
		summaries[i] = record.Summary()
	}
	return summaries, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, documentID string) error {
	if err := r.store.HDel(ctx, r.key, documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (r *DocumentRepository) encode(record *models.DocumentAnalysisResponse) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode document %s: %w", record.DocumentID, err)
	}
	if !r.compress || utils.GetBestCompression(data) == utils.CompressionNone {
		return string(data), nil
	}

	compressed, err := utils.CompressData(data, utils.CompressionBrotli)
	if err != nil {
		return "", fmt.Errorf("failed to compress document %s: %w", record.DocumentID, err)
	}
	return brotliRecordPrefix + base64.StdEncoding.EncodeToString(compressed), nil
}

func decodeRecord(raw string) (*models.DocumentAnalysisResponse, error) {
	data := []byte(raw)
	if encoded, ok := strings.CutPrefix(raw, brotliRecordPrefix); ok {
		compressed, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid record encoding: %w", err)
		}
		if data, err = utils.DecompressData(compressed, utils.CompressionBrotli); err != nil {
			return nil, err
		}
	}

	var record models.DocumentAnalysisResponse
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid document record: %w", err)
	}
	return &record, nil
}
