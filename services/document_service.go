package services

import (
	"context"
	"errors"
	"fmt"

	"study-assistant/internal/logger"
	"study-assistant/models"
)

// DocumentService serves stored analysis records and keeps their vector
// indexes in step with them.
type DocumentService struct {
	repo  *DocumentRepository
	index *VectorIndex
}

func NewDocumentService(repo *DocumentRepository, index *VectorIndex) *DocumentService {
	return &DocumentService{repo: repo, index: index}
}

func (s *DocumentService) List(ctx context.Context) ([]models.DocumentSummary, error) {
	return s.repo.List(ctx)
}

// Open loads a record, rebuilds its index from the stored chunks if the
// vectors are gone, and refreshes the neighbor preview. Persisting the
// refreshed record is best effort.
func (s *DocumentService) Open(ctx context.Context, documentID string) (*models.DocumentAnalysisResponse, error) {
	record, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.refreshIndexInfo(ctx, record, false); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, record); err != nil {
		logger.Warn("Failed to persist refreshed document", "document_id", documentID, "error", err)
	}
	return record, nil
}

// Reindex drops the document's vectors and embeds its chunks again.
func (s *DocumentService) Reindex(ctx context.Context, documentID string) (models.IndexSummary, error) {
	record, err := s.repo.Get(ctx, documentID)
	if err != nil {
		return models.IndexSummary{}, err
	}

	if err := s.refreshIndexInfo(ctx, record, true); err != nil {
		return models.IndexSummary{}, err
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return models.IndexSummary{}, err
	}

	logger.Info("Document re-indexed", "document_id", documentID, "vectors", record.EmbeddingsSummary.VectorCount)
	return record.EmbeddingsSummary, nil
}

// EnsureAllIndexed rebuilds the index of every stored document whose vectors
// are missing and reports how many were rebuilt. One failing document does
// not stop the sweep.
func (s *DocumentService) EnsureAllIndexed(ctx context.Context) (int, error) {
	records, err := s.repo.All(ctx)
	if err != nil {
		return 0, err
	}

	rebuilt := 0
	var errs []error
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if s.index.GetCachedIndexSummary(ctx, record.DocumentID).VectorCount > 0 {
			continue
		}
		if len(record.Chunks) == 0 {
			continue
		}
		if _, err := s.index.IndexChunks(ctx, record.DocumentID, record.ChunkTexts()); err != nil {
			errs = append(errs, err)
			continue
		}
		rebuilt++
	}
	return rebuilt, errors.Join(errs...)
}

// Delete removes the record and its vectors. Deleting an unknown id succeeds.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return err
	}
	return s.index.ResetDocument(ctx, documentID)
}

func (s *DocumentService) Search(ctx context.Context, documentID, query string, limit int) ([]models.SimilarityResult, error) {
	return s.index.SimilaritySearch(ctx, documentID, query, limit)
}

func (s *DocumentService) refreshIndexInfo(ctx context.Context, record *models.DocumentAnalysisResponse, rebuild bool) error {
	texts := record.ChunkTexts()

	var (
		summary models.IndexSummary
		err     error
	)
	if rebuild {
		if err = s.index.ResetDocument(ctx, record.DocumentID); err != nil {
			return err
		}
		summary, err = s.index.IndexChunks(ctx, record.DocumentID, texts)
	} else {
		summary, err = s.index.EnsureDocumentIndexed(ctx, record.DocumentID, texts)
	}
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", record.DocumentID, err)
	}

	neighbors, err := s.index.SimilaritySearch(ctx, record.DocumentID, previewQuery(record.Chunks), 0)
	if err != nil {
		return err
	}

	record.EmbeddingsSummary = summary
	record.IndexInfo = models.IndexInfo{
		IndexKey:         s.index.IndexKey(record.DocumentID),
		NearestNeighbors: neighbors,
	}
	return nil
}
