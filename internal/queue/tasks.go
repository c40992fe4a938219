package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"study-assistant/internal/config"
	"study-assistant/internal/logger"
	"study-assistant/models"
	"study-assistant/services"
)

const (
	TaskReindexDocument = "document:reindex"
)

type ReindexPayload struct {
	DocumentID string `json:"document_id"`
}

// RedisConnOpt builds asynq connection options from the shared Redis settings.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Task creators
func NewReindexTask(documentID, queue string) (*asynq.Task, error) {
	if documentID == "" {
		return nil, errors.New("document id is required")
	}
	payload, err := json.Marshal(ReindexPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	if queue == "" {
		queue = "default"
	}

	return asynq.NewTask(
		TaskReindexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(queue),
	), nil
}

// Enqueuer hands re-index jobs to the worker.
type Enqueuer struct {
	client *asynq.Client
	queue  string
}

func NewEnqueuer(opt asynq.RedisConnOpt, queue string) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opt), queue: queue}
}

// EnqueueReindex returns the asynq task id.
func (e *Enqueuer) EnqueueReindex(ctx context.Context, documentID string) (string, error) {
	task, err := NewReindexTask(documentID, e.queue)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue reindex of %s: %w", documentID, err)
	}
	return info.ID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Reindexer rebuilds one document's vector index.
type Reindexer interface {
	Reindex(ctx context.Context, documentID string) (models.IndexSummary, error)
}

// Task handlers
type TaskProcessor struct {
	docs Reindexer
}

func NewTaskProcessor(docs Reindexer) *TaskProcessor {
	return &TaskProcessor{docs: docs}
}

func (p *TaskProcessor) ProcessReindex(ctx context.Context, t *asynq.Task) error {
	var payload ReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("missing document id: %w", asynq.SkipRetry)
	}

	logger.Info("Re-indexing document", "document_id", payload.DocumentID)

	summary, err := p.docs.Reindex(ctx, payload.DocumentID)
	if errors.Is(err, services.ErrDocumentNotFound) {
		// deleted between enqueue and run
		return fmt.Errorf("document %s: %v: %w", payload.DocumentID, err, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	logger.Info("Document re-indexed by worker",
		"document_id", payload.DocumentID,
		"vectors", summary.VectorCount,
		"dimensions", summary.Dimensions,
	)
	return nil
}
