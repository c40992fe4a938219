package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"study-assistant/internal/database"
)

func TestIndexMaintenanceSchedule(t *testing.T) {
	docs, _, _ := newTestDocumentService(database.NewMemoryStore())
	m := NewIndexMaintenance(docs)
	defer m.Stop()

	require.NoError(t, m.ScheduleSweep("*/30 * * * *"))
	require.NoError(t, m.ScheduleSweep("0 * * * *"))
	assert.Equal(t, 1, m.JobCount())

	assert.Error(t, m.ScheduleSweep("not a cron"))
}

func TestIndexMaintenanceSweep(t *testing.T) {
	ctx := context.Background()
	docs, repo, index := newTestDocumentService(database.NewMemoryStore())
	require.NoError(t, repo.Save(ctx, testRecord("doc", time.Now().UTC(), "hallo welt")))

	m := NewIndexMaintenance(docs)
	defer m.Stop()

	rebuilt, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt)
	assert.Equal(t, 1, index.GetCachedIndexSummary(ctx, "doc").VectorCount)
}
