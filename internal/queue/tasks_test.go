package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/config"
	"study-assistant/models"
	"study-assistant/services"
)

type fakeReindexer struct {
	calls   []string
	summary models.IndexSummary
	err     error
}

func (f *fakeReindexer) Reindex(_ context.Context, documentID string) (models.IndexSummary, error) {
	f.calls = append(f.calls, documentID)
	return f.summary, f.err
}

func TestNewReindexTask(t *testing.T) {
	task, err := NewReindexTask("doc-1", "")
	require.NoError(t, err)
	assert.Equal(t, TaskReindexDocument, task.Type())

	var payload ReindexPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "doc-1", payload.DocumentID)

	_, err = NewReindexTask("", "default")
	assert.Error(t, err)
}

func TestProcessReindex(t *testing.T) {
	fake := &fakeReindexer{summary: models.IndexSummary{VectorCount: 2, Dimensions: 256}}
	p := NewTaskProcessor(fake)

	task, err := NewReindexTask("doc-1", "default")
	require.NoError(t, err)

	require.NoError(t, p.ProcessReindex(context.Background(), task))
	assert.Equal(t, []string{"doc-1"}, fake.calls)
}

func TestProcessReindexSkipsRetry(t *testing.T) {
	p := NewTaskProcessor(&fakeReindexer{err: services.ErrDocumentNotFound})
	task, err := NewReindexTask("gone", "default")
	require.NoError(t, err)

	err = p.ProcessReindex(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = p.ProcessReindex(context.Background(), asynq.NewTask(TaskReindexDocument, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessReindexRetriesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection refused")
	p := NewTaskProcessor(&fakeReindexer{err: storeErr})
	task, err := NewReindexTask("doc-1", "default")
	require.NoError(t, err)

	err = p.ProcessReindex(context.Background(), task)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRedisConnOpt(t *testing.T) {
	opt, err := RedisConnOpt(&config.Config{RedisURL: "redis://:secret@cache:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
