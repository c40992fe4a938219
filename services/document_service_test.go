package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/database"
	"study-assistant/models"
)

func newTestDocumentService(store database.HashStore) (*DocumentService, *DocumentRepository, *VectorIndex) {
	repo := NewDocumentRepository(store)
	index := newTestIndex(store)
	return NewDocumentService(repo, index), repo, index
}

func TestOpenRebuildsMissingIndex(t *testing.T) {
	ctx := context.Background()
	docs, repo, index := newTestDocumentService(database.NewMemoryStore())

	record := testRecord("doc", time.Now().UTC(), "lineare algebra grundlagen psychologie lernstrategien")
	require.NoError(t, repo.Save(ctx, record))
	assert.Equal(t, models.IndexSummary{}, index.GetCachedIndexSummary(ctx, "doc"))

	opened, err := docs.Open(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, models.IndexSummary{VectorCount: 2, Dimensions: 32}, opened.EmbeddingsSummary)
	assert.Equal(t, "analysis:vectors:doc", opened.IndexInfo.IndexKey)
	require.NotEmpty(t, opened.IndexInfo.NearestNeighbors)
	assert.Equal(t, "chunk:0", opened.IndexInfo.NearestNeighbors[0].ID)

	stored, err := repo.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, opened.EmbeddingsSummary, stored.EmbeddingsSummary)
}

func TestOpenUnknownDocument(t *testing.T) {
	docs, _, _ := newTestDocumentService(database.NewMemoryStore())
	_, err := docs.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDeleteRemovesRecordAndIndex(t *testing.T) {
	ctx := context.Background()
	docs, repo, index := newTestDocumentService(database.NewMemoryStore())

	record := testRecord("doc", time.Now().UTC(), "eins zwei drei vier fuenf")
	require.NoError(t, repo.Save(ctx, record))
	_, err := index.IndexChunks(ctx, "doc", record.ChunkTexts())
	require.NoError(t, err)

	require.NoError(t, docs.Delete(ctx, "doc"))
	_, err = repo.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Equal(t, models.IndexSummary{}, index.GetCachedIndexSummary(ctx, "doc"))
}

func TestReindexReplacesVectors(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	docs, repo, index := newTestDocumentService(store)

	record := testRecord("doc", time.Now().UTC(), "eins zwei drei")
	require.NoError(t, repo.Save(ctx, record))
	_, err := index.IndexChunks(ctx, "doc", []string{"alt", "veraltet", "weg"})
	require.NoError(t, err)

	summary, err := docs.Reindex(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, models.IndexSummary{VectorCount: 1, Dimensions: 32}, summary)
	assert.Equal(t, 1, index.GetCachedIndexSummary(ctx, "doc").VectorCount)

	_, err = docs.Reindex(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestEnsureAllIndexed(t *testing.T) {
	ctx := context.Background()
	docs, repo, index := newTestDocumentService(database.NewMemoryStore())

	indexed := testRecord("indexed", time.Now().UTC(), "schon da")
	missing := testRecord("missing", time.Now().UTC(), "fehlt noch")
	empty := testRecord("empty", time.Now().UTC(), "")
	for _, r := range []*models.DocumentAnalysisResponse{indexed, missing, empty} {
		require.NoError(t, repo.Save(ctx, r))
	}
	_, err := index.IndexChunks(ctx, "indexed", indexed.ChunkTexts())
	require.NoError(t, err)

	rebuilt, err := docs.EnsureAllIndexed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt)
	assert.Equal(t, 1, index.GetCachedIndexSummary(ctx, "missing").VectorCount)

	rebuilt, err = docs.EnsureAllIndexed(ctx)
	require.NoError(t, err)
	assert.Zero(t, rebuilt)
}

func TestContextForQuery(t *testing.T) {
	ctx := context.Background()
	docs, _, index := newTestDocumentService(database.NewMemoryStore())

	_, err := index.IndexChunks(ctx, "doc", []string{
		"Lineare Algebra Grundlagen",
		"Psychologie Lernstrategien",
		"Programmieren mit TypeScript",
	})
	require.NoError(t, err)

	out := docs.ContextForQuery(ctx, "doc", "Lernstrategien", 0)
	assert.Contains(t, out, "#1 (Score 1.000): Psychologie Lernstrategien")
	assert.Contains(t, out, "\n\n#2 (Score ")
	assert.Contains(t, out, "#3 (Score ")

	assert.Equal(t, "", docs.ContextForQuery(ctx, "unknown", "egal", 4))
}

func TestContextForQueryStoreFailure(t *testing.T) {
	store := newSpyStore()
	docs, _, _ := newTestDocumentService(store)
	store.setFail(true)

	assert.Equal(t, "", docs.ContextForQuery(context.Background(), "doc", "hallo", 4))
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]models.SimilarityResult{
		{ID: "chunk:1", Text: "erster", Score: 0.91234},
		{ID: "chunk:0", Text: "zweiter", Score: 0.5},
	})
	assert.Equal(t, "#1 (Score 0.912): erster\n\n#2 (Score 0.500): zweiter", out)
	assert.Equal(t, "", FormatContext(nil))
}
