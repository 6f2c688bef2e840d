package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logydesk/internal/ai"
	"logydesk/internal/config"
)

func testConfig(embeddingModel, apiKey string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			BaseURL:        "https://example.com/v1",
			APIKey:         apiKey,
			EmbeddingModel: embeddingModel,
		},
	}
}

// With no embedding model configured, retrieval must run without an embedder
// so it uses the keyword scan instead of meaningless hash similarities.
func TestQueryEmbedderDefaultIsNil(t *testing.T) {
	assert.Nil(t, QueryEmbedder(testConfig("", "")))
	assert.Nil(t, QueryEmbedder(testConfig("text-embedding-3-small", "")))
	assert.Nil(t, QueryEmbedder(testConfig("", "sk-key")))
}

func TestQueryEmbedderConfigured(t *testing.T) {
	embedder := QueryEmbedder(testConfig("text-embedding-3-small", "sk-key"))
	require.NotNil(t, embedder)
	_, ok := embedder.(*ai.APIEmbedder)
	assert.True(t, ok)
}

func TestIngestEmbedderFallsBackToHash(t *testing.T) {
	embedder := IngestEmbedder(testConfig("", ""))
	require.NotNil(t, embedder)
	_, ok := embedder.(*ai.HashEmbedder)
	assert.True(t, ok)
}

func TestIngestEmbedderConfigured(t *testing.T) {
	embedder := IngestEmbedder(testConfig("text-embedding-3-small", "sk-key"))
	require.NotNil(t, embedder)
	_, ok := embedder.(*ai.APIEmbedder)
	assert.True(t, ok)
}
