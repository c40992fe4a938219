package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"study-assistant/internal/ai"
	"study-assistant/internal/config"
	"study-assistant/internal/database"
	"study-assistant/internal/logger"
	"study-assistant/services"

	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  ensure-indexes  - Create the unique (key, field) index on the Mongo hash collection")
		fmt.Println("  verify-index    - Report stored documents whose vector index is missing or incomplete")
		fmt.Println("  reindex-all     - Re-embed every stored document (run after changing the embeddings model)")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	switch command {
	case "ensure-indexes":
		if err := ensureIndexes(ctx, cfg); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Mongo indexes are in place")

	case "verify-index", "reindex-all":
		docs, index, repo, closeAll, err := openServices(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to open services: %v", err)
		}
		defer closeAll()

		if command == "verify-index" {
			err = verifyIndex(ctx, repo, index)
		} else {
			err = reindexAll(ctx, repo, docs)
		}
		if err != nil {
			log.Fatalf("%s failed: %v", command, err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func ensureIndexes(ctx context.Context, cfg *config.Config) error {
	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	store := database.NewMongoStore(client.Database(cfg.DBName).Collection(cfg.MongoCollection))
	return store.EnsureIndexes(ctx)
}

func openServices(ctx context.Context, cfg *config.Config) (*services.DocumentService, *services.VectorIndex, *services.DocumentRepository, func(), error) {
	var rdb *redis.Client
	if cfg.StoreBackend == "redis" {
		var err error
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, nil, nil, err
		}
	}

	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if rdb != nil {
		closers = append(closers, func() { rdb.Close() })
	}

	store, closeStore, err := database.OpenHashStore(ctx, cfg, rdb)
	if err != nil {
		closeAll()
		return nil, nil, nil, nil, err
	}
	closers = append(closers, closeStore)

	embeddings, closeEmbeddings, err := ai.NewEmbeddings(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, nil, nil, err
	}
	closers = append(closers, closeEmbeddings)

	index := services.NewVectorIndex(store, embeddings,
		services.WithIndexPrefix(cfg.VectorIndexPrefix),
		services.WithDefaultLimit(cfg.SimilarityLimit),
	)
	repo := services.NewDocumentRepository(store,
		services.WithDocumentsKey(cfg.DocumentsKey),
		services.WithRecordCompression(cfg.CompressRecords),
	)
	return services.NewDocumentService(repo, index), index, repo, closeAll, nil
}

func verifyIndex(ctx context.Context, repo *services.DocumentRepository, index *services.VectorIndex) error {
	fmt.Println("Verifying vector indexes...")

	documents, err := repo.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d documents to verify\n", len(documents))

	incomplete := 0
	for _, doc := range documents {
		summary := index.GetCachedIndexSummary(ctx, doc.DocumentID)
		status := "ok"
		if summary.VectorCount != doc.ChunkCount {
			status = "INCOMPLETE"
			incomplete++
		}
		fmt.Printf("  %s (%s): %d/%d vectors, %d dims [%s]\n",
			doc.DocumentID, doc.FileName, summary.VectorCount, doc.ChunkCount, summary.Dimensions, status)
	}

	if incomplete > 0 {
		return fmt.Errorf("%d documents need re-indexing", incomplete)
	}
	fmt.Println("All indexes complete")
	return nil
}

func reindexAll(ctx context.Context, repo *services.DocumentRepository, docs *services.DocumentService) error {
	documents, err := repo.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Re-indexing %d documents...\n", len(documents))

	failed := 0
	for _, doc := range documents {
		summary, err := docs.Reindex(ctx, doc.DocumentID)
		if err != nil {
			failed++
			fmt.Printf("  %s: %v\n", doc.DocumentID, err)
			continue
		}
		fmt.Printf("  %s: %d vectors, %d dims\n", doc.DocumentID, summary.VectorCount, summary.Dimensions)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(documents))
	}
	return nil
}
