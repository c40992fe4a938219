package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"study-assistant/internal/ai"
	"study-assistant/internal/config"
	"study-assistant/internal/database"
	"study-assistant/internal/logger"
	"study-assistant/internal/queue"
	"study-assistant/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.InitLogger(&config.Config{})
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store, closeStore, err := database.OpenHashStore(ctx, cfg, rdb)
	if err != nil {
		logger.Error("Failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	embeddings, closeEmbeddings, err := ai.NewEmbeddings(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize embeddings", "provider", cfg.EmbeddingsProvider, "error", err)
		os.Exit(1)
	}
	defer closeEmbeddings()

	index := services.NewVectorIndex(store, embeddings,
		services.WithIndexPrefix(cfg.VectorIndexPrefix),
		services.WithDefaultLimit(cfg.SimilarityLimit),
	)
	repo := services.NewDocumentRepository(store,
		services.WithDocumentsKey(cfg.DocumentsKey),
		services.WithRecordCompression(cfg.CompressRecords),
	)
	docs := services.NewDocumentService(repo, index)

	// Periodic sweep that restores vectors lost to eviction or a store flush
	maintenance := services.NewIndexMaintenance(docs)
	if err := maintenance.ScheduleSweep(cfg.IndexSweepCron); err != nil {
		logger.Error("Failed to schedule index sweep", "cron", cfg.IndexSweepCron, "error", err)
		os.Exit(1)
	}
	maintenance.Start()
	defer maintenance.Stop()

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		logger.Error("Invalid Redis configuration", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				cfg.WorkerQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(docs)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskReindexDocument, processor.ProcessReindex)

	logger.Info("Starting Asynq worker", "queue", cfg.WorkerQueue, "redis", redisOpt.Addr, "sweep", cfg.IndexSweepCron)

	if err := server.Start(mux); err != nil {
		logger.Error("Failed to start worker", "error", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
}
