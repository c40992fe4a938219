package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"study-assistant/internal/logger"
)

const (
	// text-embedding-004 output length, used until the first response says otherwise.
	geminiDefaultDimensions = 768
	// BatchEmbedContents rejects more than 100 requests per call.
	geminiMaxBatch = 100
)

var ErrEmbeddingsUnavailable = errors.New("embeddings provider unavailable")

type GeminiEmbeddingsConfig struct {
	APIKey string
	Model  string
	RPM    int
}

// GeminiEmbeddings calls the Google embedding API behind a rate limiter and a
// circuit breaker.
type GeminiEmbeddings struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter

	mu   sync.RWMutex
	dims int
}

func NewGeminiEmbeddings(ctx context.Context, cfg GeminiEmbeddingsConfig) (*GeminiEmbeddings, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiEmbeddings{
		client:      client,
		model:       cfg.Model,
		breaker:     newEmbeddingsBreaker(),
		rateLimiter: newRPMLimiter(cfg.RPM),
		dims:        geminiDefaultDimensions,
	}, nil
}

func newEmbeddingsBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// newRPMLimiter keeps a 10% buffer under the requests-per-minute quota.
func newRPMLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)
}

func (g *GeminiEmbeddings) Dimensions() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dims
}

func (g *GeminiEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vectors, err := g.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiEmbeddings) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_documents")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", g.model),
		attribute.Int("gemini.texts", len(texts)),
	)

	out := make([][]float64, 0, len(texts))
	for _, batch := range splitBatches(texts, geminiMaxBatch) {
		vectors, err := g.embedBatch(ctx, batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (g *GeminiEmbeddings) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embeddings rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		em := g.client.EmbeddingModel(g.model)
		b := em.NewBatch()
		for _, text := range texts {
			b.AddContent(genai.Text(text))
		}
		return em.BatchEmbedContents(ctx, b)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingsUnavailable, err)
		}
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	resp := result.(*genai.BatchEmbedContentsResponse)
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding returned for text %d", i)
		}
		vectors[i] = toFloat64(emb.Values)
	}
	if len(vectors) > 0 {
		g.mu.Lock()
		g.dims = len(vectors[0])
		g.mu.Unlock()
	}
	return vectors, nil
}

func (g *GeminiEmbeddings) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func splitBatches(texts []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}

// genai SDK returns []float32 for Embedding.Values
func toFloat64(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
