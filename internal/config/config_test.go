package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "no-such-file.toml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 0.7, cfg.RAG.ScoreThreshold)
	assert.Equal(t, 2000, cfg.RAG.MaxContextChars)
}

func TestLoadRAGEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "no-such-file.toml")
	t.Setenv("RAG_CHUNK_SIZE", "500")
	t.Setenv("RAG_TOP_K", "3")
	t.Setenv("RAG_SCORE_THRESHOLD", "0.55")
	t.Setenv("RAG_MAX_CONTEXT_CHARS", "1500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 0.55, cfg.RAG.ScoreThreshold)
	assert.Equal(t, 1500, cfg.RAG.MaxContextChars)
}

func TestScoreThresholdOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("CONFIG_FILE", "no-such-file.toml")
	t.Setenv("RAG_SCORE_THRESHOLD", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.RAG.ScoreThreshold)
}

func TestHTTPAddr(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "app"
	cfg.MySQL.Password = "secret"
	cfg.MySQL.Host = "db"
	cfg.MySQL.Port = 3307
	cfg.MySQL.DB = "logydesk"
	cfg.MySQL.Params = "parseTime=true"
	assert.Equal(t, "app:secret@tcp(db:3307)/logydesk?parseTime=true", cfg.MySQLDSN())
}
