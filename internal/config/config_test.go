package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ChunkSize:          200,
		ChunkOverlap:       40,
		StoreBackend:       "redis",
		EmbeddingsProvider: "local",
		VectorDimensions:   256,
		AllowedTypes:       []string{"application/pdf", " text/plain"},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 40, cfg.ChunkOverlap)
	assert.Equal(t, 256, cfg.VectorDimensions)
	assert.Equal(t, "analysis:vectors", cfg.VectorIndexPrefix)
	assert.Equal(t, "analysis:documents", cfg.DocumentsKey)
	assert.Equal(t, "memory", cfg.StoreBackend)
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("CHUNK_SIZE", "50")
	t.Setenv("CHUNK_OVERLAP", "10")
	t.Setenv("VECTOR_DIM", "32")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 50, cfg.ChunkSize)
	assert.Equal(t, 10, cfg.ChunkOverlap)
	assert.Equal(t, 32, cfg.VectorDimensions)
	assert.Equal(t, "5s", cfg.ShutdownTimeout.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = 200 }, true},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, true},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, true},
		{"zero dimensions", func(c *Config) { c.VectorDimensions = 0 }, true},
		{"unknown backend", func(c *Config) { c.StoreBackend = "etcd" }, true},
		{"gemini without key", func(c *Config) { c.EmbeddingsProvider = "gemini" }, true},
		{"gemini with key", func(c *Config) {
			c.EmbeddingsProvider = "gemini"
			c.GeminiAPIKey = "key"
		}, false},
		{"unknown provider", func(c *Config) { c.EmbeddingsProvider = "openai" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsAllowedType(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.IsAllowedType("application/pdf"))
	assert.True(t, cfg.IsAllowedType("TEXT/PLAIN"))
	assert.False(t, cfg.IsAllowedType("image/png"))
}

func TestRedisOptions(t *testing.T) {
	cfg := &Config{RedisURL: "redis://:secret@cache:6380/2"}
	opt, err := RedisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)

	cfg = &Config{RedisURL: "localhost:6379", RedisDB: 3}
	opt, err = RedisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opt.Addr)
	assert.Equal(t, 3, opt.DB)
}
