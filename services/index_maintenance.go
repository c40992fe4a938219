package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"study-assistant/internal/logger"
)

const indexSweepTag = "index-sweep"

// sweepTimeout bounds one pass over all stored documents.
const sweepTimeout = 10 * time.Minute

// IndexMaintenance periodically restores vector indexes whose hashes went
// missing, for example after a Redis eviction or flush.
type IndexMaintenance struct {
	scheduler *gocron.Scheduler
	docs      *DocumentService
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewIndexMaintenance(docs *DocumentService) *IndexMaintenance {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &IndexMaintenance{
		scheduler: s,
		docs:      docs,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ScheduleSweep runs Sweep on a standard five-field cron expression.
// Scheduling again replaces the previous sweep.
func (m *IndexMaintenance) ScheduleSweep(cronExpr string) error {
	_ = m.scheduler.RemoveByTag(indexSweepTag)
	_, err := m.scheduler.Cron(cronExpr).Tag(indexSweepTag).Do(m.runSweep)
	return err
}

func (m *IndexMaintenance) runSweep() {
	ctx, cancel := context.WithTimeout(m.ctx, sweepTimeout)
	defer cancel()

	if _, err := m.Sweep(ctx); err != nil {
		logger.Error("Index sweep failed", "error", err)
	}
}

// Sweep re-indexes every stored document without vectors.
func (m *IndexMaintenance) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	rebuilt, err := m.docs.EnsureAllIndexed(ctx)
	logger.Info("Index sweep finished", "rebuilt", rebuilt, "duration_ms", time.Since(start).Milliseconds())
	return rebuilt, err
}

func (m *IndexMaintenance) Start() {
	m.scheduler.StartAsync()
}

func (m *IndexMaintenance) Stop() {
	m.scheduler.Stop()
	if m.cancel != nil {
		m.cancel()
	}
}

// JobCount reports the number of scheduled jobs.
func (m *IndexMaintenance) JobCount() int {
	return len(m.scheduler.Jobs())
}
