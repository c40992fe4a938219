package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"study-assistant/internal/ai"
	"study-assistant/internal/config"
	"study-assistant/internal/database"
	"study-assistant/internal/logger"
	"study-assistant/internal/queue"
	"study-assistant/internal/telemetry"
	"study-assistant/middleware"
	"study-assistant/routes"
	"study-assistant/services"
)

const serviceName = "study-assistant"

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

	if cfg.TracingEnabled {
		environment := "development"
		if cfg.GinMode == "release" {
			environment = "production"
		}
		shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTelExporterEndpoint, environment)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Redis backs the vector store by default; rate limiting and the re-index
	// queue use it whenever it is reachable.
	var rdb *redis.Client
	rdb, err = config.NewRedisClient(cfg)
	if err != nil {
		if cfg.StoreBackend == "redis" {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		logger.Warn("Redis unavailable, rate limiting and re-index queue disabled", "error", err)
	} else {
		defer rdb.Close()
	}

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
		services.WithIndexMetrics(metrics),
	)
	repo := services.NewDocumentRepository(store,
		services.WithDocumentsKey(cfg.DocumentsKey),
		services.WithRecordCompression(cfg.CompressRecords),
	)
	analysis := services.NewAnalysisService(services.NewDocumentParser(), index, repo,
		services.WithChunkOptions(services.ChunkOptions{ChunkSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}),
		services.WithAnalysisMetrics(metrics),
	)
	docs := services.NewDocumentService(repo, index)

	var enqueuer routes.ReindexEnqueuer
	if rdb != nil {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			logger.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		queueClient := queue.NewEnqueuer(redisOpt, cfg.WorkerQueue)
		defer queueClient.Close()
		enqueuer = queueClient
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, cfg.RateLimitWindow))
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"store":     cfg.StoreBackend,
			"embedding": embeddings.Dimensions(),
		})
	})

	routes.SetupDocumentRoutes(router, routes.NewDocumentHandler(cfg, analysis, docs, enqueuer))

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "store", cfg.StoreBackend, "embeddings", cfg.EmbeddingsProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
