package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/database"
	"study-assistant/models"
)

func testRecord(id string, created time.Time, text string) *models.DocumentAnalysisResponse {
	chunks, _ := ChunkText(text, ChunkOptions{ChunkSize: 4, Overlap: 1})
	return &models.DocumentAnalysisResponse{
		DocumentID:  id,
		CreatedAt:   created,
		FileName:    id + ".txt",
		MimeType:    MimeTypePlainText,
		TextPreview: text,
		TotalTokens: len(strings.Fields(text)),
		ChunkCount:  len(chunks),
		Chunks:      chunks,
		Steps:       models.NewAnalysisSteps(),
	}
}

func TestDocumentRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(database.NewMemoryStore())
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	older := testRecord("older", base, "eins zwei drei")
	newer := testRecord("newer", base.Add(time.Hour), "vier fuenf")
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	got, err := repo.Get(ctx, "older")
	require.NoError(t, err)
	assert.Equal(t, older.TextPreview, got.TextPreview)
	assert.Equal(t, older.Chunks, got.Chunks)
	assert.True(t, older.CreatedAt.Equal(got.CreatedAt))

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].DocumentID)
	assert.Equal(t, "older", summaries[1].DocumentID)
	assert.Equal(t, 3, summaries[1].TotalTokens)

	require.NoError(t, repo.Delete(ctx, "older"))
	_, err = repo.Get(ctx, "older")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	// deleting twice is fine
	require.NoError(t, repo.Delete(ctx, "older"))
}

func TestDocumentRepositoryCompression(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	repo := NewDocumentRepository(store, WithRecordCompression(true), WithDocumentsKey("docs"))

	record := testRecord("big", time.Now().UTC(), strings.Repeat("wiederholung ", 400))
	require.NoError(t, repo.Save(ctx, record))

	raw, err := store.HGet(ctx, "docs", "big")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, brotliRecordPrefix))

	got, err := repo.Get(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, record.TextPreview, got.TextPreview)

	// uncompressed records stay readable after enabling compression
	small := testRecord("small", time.Now().UTC(), "kurz")
	require.NoError(t, NewDocumentRepository(store, WithDocumentsKey("docs")).Save(ctx, small))
	raw, err = store.HGet(ctx, "docs", "small")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "{"))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDocumentRepositorySkipsUnreadableRecords(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	repo := NewDocumentRepository(store)

	require.NoError(t, repo.Save(ctx, testRecord("ok", time.Now().UTC(), "hallo")))
	require.NoError(t, store.HSet(ctx, DefaultDocumentsKey, "broken", "{"))
	require.NoError(t, store.HSet(ctx, DefaultDocumentsKey, "badb64", brotliRecordPrefix+"***"))

	summaries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "ok", summaries[0].DocumentID)

	_, err = repo.Get(ctx, "broken")
	assert.Error(t, err)
}

func TestDocumentRepositoryStoreFailure(t *testing.T) {
	store := newSpyStore()
	store.setFail(true)
	repo := NewDocumentRepository(store)

	err := repo.Save(context.Background(), testRecord("x", time.Now(), "a"))
	assert.ErrorIs(t, err, errStoreDown)
	_, err = repo.List(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
}
