package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/database"
	"study-assistant/models"
)

func newTestAnalysisService(store database.HashStore, opts ...AnalysisOption) (*AnalysisService, *DocumentRepository) {
	repo := NewDocumentRepository(store)
	svc := NewAnalysisService(NewDocumentParser(), newTestIndex(store), repo, opts...)
	svc.newID = func() string { return "doc-fixed" }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAnalyzePlainText(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	svc, repo := newTestAnalysisService(store, WithChunkOptions(ChunkOptions{ChunkSize: 4, Overlap: 1}))

	text := "Lineare Algebra Grundlagen. Psychologie und Lernstrategien fuer Programmieren mit TypeScript"
	res, err := svc.Analyze(ctx, AnalyzeInput{Data: []byte(text), FileName: "notes.txt", MimeType: "text/plain"})
	require.NoError(t, err)

	assert.Equal(t, "doc-fixed", res.DocumentID)
	assert.Equal(t, "notes.txt", res.FileName)
	assert.Equal(t, text, res.TextPreview)
	assert.Equal(t, 10, res.TotalTokens)
	// 10 tokens, window 4, stride 3: [0,4) [3,7) [6,10)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Len(t, res.Chunks, 3)
	assert.Equal(t, models.IndexSummary{VectorCount: 3, Dimensions: 32}, res.EmbeddingsSummary)
	assert.Equal(t, "analysis:vectors:doc-fixed", res.IndexInfo.IndexKey)
	assert.NotEmpty(t, res.ContentHash)

	require.NotEmpty(t, res.IndexInfo.NearestNeighbors)
	assert.Equal(t, "chunk:0", res.IndexInfo.NearestNeighbors[0].ID)
	assert.InDelta(t, 1.0, res.IndexInfo.NearestNeighbors[0].Score, 1e-9)
	assert.LessOrEqual(t, len(res.IndexInfo.NearestNeighbors), DefaultSimilarityLimit)

	for _, step := range res.Steps {
		assert.Equal(t, models.StepCompleted, step.Status, step.ID)
	}

	parse, _ := res.Steps.Get(models.StepParse)
	require.NotNil(t, parse.DurationMs)
	assert.Equal(t, MimeTypePlainText, parse.Meta["detectedMimeType"])
	assert.Equal(t, len(text), parse.Meta["fileSize"])
	assert.Nil(t, parse.Meta["numPages"])

	tokenize, _ := res.Steps.Get(models.StepTokenize)
	assert.Equal(t, 10, tokenize.Meta["tokens"])

	chunk, _ := res.Steps.Get(models.StepChunk)
	assert.Equal(t, 3, chunk.Meta["chunkCount"])
	assert.Equal(t, 4, chunk.Meta["avgChunkTokens"])

	embed, _ := res.Steps.Get(models.StepEmbed)
	assert.Equal(t, 3, embed.Meta["vectorCount"])
	assert.Equal(t, 32, embed.Meta["dimensions"])

	saved, err := repo.Get(ctx, "doc-fixed")
	require.NoError(t, err)
	assert.Equal(t, res.ChunkCount, saved.ChunkCount)
	assert.Equal(t, res.TextPreview, saved.TextPreview)
}

func TestAnalyzeDocumentWithoutTokens(t *testing.T) {
	store := newSpyStore()
	svc, _ := newTestAnalysisService(store)

	res, err := svc.Analyze(context.Background(), AnalyzeInput{Data: []byte(" ... !!! "), FileName: "blank.txt", MimeType: "text/plain"})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalTokens)
	assert.Equal(t, 0, res.ChunkCount)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, models.IndexSummary{}, res.EmbeddingsSummary)
	assert.Empty(t, res.IndexInfo.NearestNeighbors)

	chunk, _ := res.Steps.Get(models.StepChunk)
	assert.Equal(t, 0, chunk.Meta["avgChunkTokens"])
}

func TestAnalyzeEmptyFileFailsParse(t *testing.T) {
	store := newSpyStore()
	svc, _ := newTestAnalysisService(store)

	res, err := svc.Analyze(context.Background(), AnalyzeInput{FileName: "empty.txt", MimeType: "text/plain"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrEmptyInput)

	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, models.StepParse, analysisErr.Step)

	upload, _ := analysisErr.Steps.Get(models.StepUpload)
	assert.Equal(t, models.StepCompleted, upload.Status)
	parse, _ := analysisErr.Steps.Get(models.StepParse)
	assert.Equal(t, models.StepFailed, parse.Status)
	for _, id := range []models.StepID{models.StepTokenize, models.StepChunk, models.StepEmbed} {
		step, _ := analysisErr.Steps.Get(id)
		assert.Equal(t, models.StepPending, step.Status, id)
	}

	assert.Zero(t, store.callCount(), "nothing is written when parsing fails")
}

func TestAnalyzeUnsupportedType(t *testing.T) {
	svc, _ := newTestAnalysisService(database.NewMemoryStore())
	_, err := svc.Analyze(context.Background(), AnalyzeInput{Data: []byte("x"), MimeType: "image/png"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestAnalyzeStoreFailureFailsEmbed(t *testing.T) {
	store := newSpyStore()
	store.setFail(true)
	svc, _ := newTestAnalysisService(store)

	_, err := svc.Analyze(context.Background(), AnalyzeInput{Data: []byte("hallo welt"), MimeType: "text/plain"})
	require.ErrorIs(t, err, ErrEmbeddingIndex)

	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, models.StepEmbed, analysisErr.Step)

	chunk, _ := analysisErr.Steps.Get(models.StepChunk)
	assert.Equal(t, models.StepCompleted, chunk.Status)
	embed, _ := analysisErr.Steps.Get(models.StepEmbed)
	assert.Equal(t, models.StepFailed, embed.Status)
	assert.True(t, strings.Contains(embed.Meta["error"].(string), "store unavailable"))
}

func TestAnalyzeInvalidChunkOptionsFailsChunk(t *testing.T) {
	svc, _ := newTestAnalysisService(database.NewMemoryStore(), WithChunkOptions(ChunkOptions{ChunkSize: 5, Overlap: 5}))

	_, err := svc.Analyze(context.Background(), AnalyzeInput{Data: []byte("hallo welt"), MimeType: "text/plain"})
	require.ErrorIs(t, err, ErrInvalidChunkOptions)

	var analysisErr *AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, models.StepChunk, analysisErr.Step)
}

func TestAverageChunkTokens(t *testing.T) {
	assert.Equal(t, 0, averageChunkTokens(nil))
	assert.Equal(t, 3, averageChunkTokens([]models.TextChunk{{TokenCount: 4}, {TokenCount: 1}}))
	assert.Equal(t, 2, averageChunkTokens([]models.TextChunk{{TokenCount: 2}, {TokenCount: 1}, {TokenCount: 2}}))
}
