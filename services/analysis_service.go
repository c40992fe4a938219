package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"study-assistant/internal/logger"
	"study-assistant/internal/telemetry"
	"study-assistant/models"
	"study-assistant/utils"
)

// previewFallbackQuery is searched when a document produced no chunks.
const previewFallbackQuery = "Dokument"

type AnalyzeInput struct {
	Data     []byte
	FileName string
	MimeType string
}

// AnalysisService runs parse, tokenize, chunk and embed for one upload at a time.
type AnalysisService struct {
	parser    *DocumentParser
	tokenizer *utils.Tokenizer
	index     *VectorIndex
	repo      *DocumentRepository
	chunkOpts ChunkOptions
	metrics   *telemetry.Metrics

	now   func() time.Time
	newID func() string
}

type AnalysisOption func(*AnalysisService)

func WithChunkOptions(opts ChunkOptions) AnalysisOption {
	return func(s *AnalysisService) { s.chunkOpts = opts }
}

func WithAnalysisMetrics(m *telemetry.Metrics) AnalysisOption {
	return func(s *AnalysisService) { s.metrics = m }
}

// NewAnalysisService wires the pipeline. repo may be nil, in which case
// records are returned but not persisted.
func NewAnalysisService(parser *DocumentParser, index *VectorIndex, repo *DocumentRepository, opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		parser:    parser,
		tokenizer: utils.NewTokenizer(),
		index:     index,
		repo:      repo,
		chunkOpts: DefaultChunkOptions(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type analysisRun struct {
	documentID string
	steps      models.AnalysisSteps
}

// Analyze indexes one document under a fresh id. On failure the returned
// *AnalysisError names the failed step and carries the step list; the index
// is not rolled back.
func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*models.DocumentAnalysisResponse, error) {
	tracer := otel.Tracer("analysis-service")
	ctx, span := tracer.Start(ctx, "analysis.analyze")
	defer span.End()

	run := &analysisRun{documentID: s.newID(), steps: models.NewAnalysisSteps()}
	createdAt := s.now().UTC()

	span.SetAttributes(
		attribute.String("document.id", run.documentID),
		attribute.String("document.mime_type", in.MimeType),
		attribute.Int("document.size", len(in.Data)),
	)
	logger.Info("Starting document analysis", "document_id", run.documentID, "file_name", in.FileName, "size", len(in.Data))

	var (
		parsed    *ParseResult
		tokens    []string
		chunks    []models.TextChunk
		summary   models.IndexSummary
		neighbors []models.SimilarityResult
	)

	err := s.runStep(ctx, run, models.StepParse, func(ctx context.Context) (map[string]any, error) {
		var err error
		parsed, err = s.parser.Parse(ctx, in.Data, in.MimeType)
		if err != nil {
			return nil, err
		}
		var numPages any
		if parsed.Meta.NumPages != nil {
			numPages = *parsed.Meta.NumPages
		}
		return map[string]any{
			"numPages":         numPages,
			"detectedMimeType": parsed.Meta.DetectedMimeType,
			"fileSize":         parsed.Meta.FileSize,
		}, nil
	})
	if err == nil {
		err = s.runStep(ctx, run, models.StepTokenize, func(context.Context) (map[string]any, error) {
			tokens = s.tokenizer.Tokenize(parsed.Text)
			return map[string]any{"tokens": len(tokens)}, nil
		})
	}
	if err == nil {
		err = s.runStep(ctx, run, models.StepChunk, func(context.Context) (map[string]any, error) {
			var err error
			chunks, err = ChunkTokens(tokens, s.chunkOpts)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"chunkCount":     len(chunks),
				"avgChunkTokens": averageChunkTokens(chunks),
			}, nil
		})
	}
	if err == nil {
		err = s.runStep(ctx, run, models.StepEmbed, func(ctx context.Context) (map[string]any, error) {
			if err := s.index.ResetDocument(ctx, run.documentID); err != nil {
				return nil, err
			}

			texts := make([]string, len(chunks))
			for i, c := range chunks {
				texts[i] = c.Text
			}

			var err error
			summary, err = s.index.IndexChunks(ctx, run.documentID, texts)
			if err != nil {
				return nil, err
			}

			neighbors, err = s.index.SimilaritySearch(ctx, run.documentID, previewQuery(chunks), 0)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"vectorCount": summary.VectorCount,
				"dimensions":  summary.Dimensions,
			}, nil
		})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordAnalysisRun(ctx, string(models.StepFailed))
		return nil, err
	}

	record := &models.DocumentAnalysisResponse{
		DocumentID:        run.documentID,
		CreatedAt:         createdAt,
		FileName:          in.FileName,
		MimeType:          in.MimeType,
		FileSize:          parsed.Meta.FileSize,
		NumPages:          parsed.Meta.NumPages,
		ContentHash:       contentHash(in.Data),
		TextPreview:       parsed.Text,
		TotalTokens:       len(tokens),
		ChunkCount:        len(chunks),
		Chunks:            chunks,
		Steps:             run.steps,
		EmbeddingsSummary: summary,
		IndexInfo: models.IndexInfo{
			IndexKey:         s.index.IndexKey(run.documentID),
			NearestNeighbors: neighbors,
		},
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, record); err != nil {
			span.RecordError(err)
			s.metrics.RecordAnalysisRun(ctx, string(models.StepFailed))
			return nil, fmt.Errorf("analysis of %s finished but could not be saved: %w", run.documentID, err)
		}
	}

	s.metrics.RecordAnalysisRun(ctx, string(models.StepCompleted))
	logger.Info("Document analysis completed",
		"document_id", run.documentID,
		"tokens", len(tokens),
		"chunks", len(chunks),
		"vectors", summary.VectorCount,
	)
	return record, nil
}

// runStep moves one step through in_progress to completed or failed and
// records its span and duration.
func (s *AnalysisService) runStep(ctx context.Context, run *analysisRun, id models.StepID, fn func(context.Context) (map[string]any, error)) error {
	steps, err := run.steps.Start(id)
	if err != nil {
		return err
	}
	run.steps = steps

	ctx, span := otel.Tracer("analysis-service").Start(ctx, "analysis.step."+string(id))
	defer span.End()

	start := time.Now()
	meta, stepErr := fn(ctx)
	elapsed := time.Since(start)

	if stepErr != nil {
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, stepErr.Error())
		s.metrics.RecordAnalysisStep(ctx, string(id), string(models.StepFailed), elapsed.Seconds())

		failed, err := run.steps.Fail(id, elapsed, stepErr.Error())
		if err != nil {
			return errors.Join(stepErr, err)
		}
		run.steps = failed

		logger.Warn("Analysis step failed", "document_id", run.documentID, "step", id, "error", stepErr)
		return &AnalysisError{DocumentID: run.documentID, Step: id, Steps: run.steps, Err: stepErr}
	}

	completed, err := run.steps.Complete(id, elapsed, meta)
	if err != nil {
		return err
	}
	run.steps = completed
	s.metrics.RecordAnalysisStep(ctx, string(id), string(models.StepCompleted), elapsed.Seconds())
	logger.Debug("Analysis step completed", "document_id", run.documentID, "step", id, "duration_ms", elapsed.Milliseconds())
	return nil
}

func averageChunkTokens(chunks []models.TextChunk) int {
	if len(chunks) == 0 {
		return 0
	}
	total := 0
	for _, c := range chunks {
		total += c.TokenCount
	}
	return int(math.Round(float64(total) / float64(len(chunks))))
}

func previewQuery(chunks []models.TextChunk) string {
	if len(chunks) == 0 {
		return previewFallbackQuery
	}
	return chunks[0].Text
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
