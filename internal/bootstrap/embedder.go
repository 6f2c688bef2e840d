package bootstrap

import (
	"logydesk/internal/ai"
	"logydesk/internal/config"
)

// QueryEmbedder returns the embedder used to score retrieval queries, or nil
// when no embedding model is configured. A nil embedder makes search degrade
// to the keyword scan; hash vectors must never rank queries because their
// all-positive components put unrelated texts above the similarity threshold.
func QueryEmbedder(cfg *config.Config) ai.Embedder {
	if cfg.LLM.EmbeddingModel == "" || cfg.LLM.APIKey == "" {
		return nil
	}
	provider := ai.ProviderConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey}
	return ai.NewAPIEmbedder(ai.NewClient(), provider, cfg.LLM.EmbeddingModel)
}

// IngestEmbedder returns the embedder the chunk worker runs. Without an
// embedding model it falls back to the deterministic hash embedder so chunk
// lifecycles still complete offline.
func IngestEmbedder(cfg *config.Config) ai.Embedder {
	if embedder := QueryEmbedder(cfg); embedder != nil {
		return embedder
	}
	return ai.NewHashEmbedder(0)
}
