package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAllModelsFailed is returned when every candidate model exhausted its
// retries. Callers that want the legacy apology behavior map this error to a
// canned message themselves; the failure is never hidden in the return value.
var ErrAllModelsFailed = errors.New("all candidate models failed")

const (
	minTemperature = 0.0
	maxTemperature = 2.0
	maxTokensCap   = 2000

	defaultMaxRetries = 3
	defaultRetryBase  = time.Second
)

// GeneratorConfig ranks the models the Generator may try.
type GeneratorConfig struct {
	Provider       ProviderConfig
	Model          string
	FallbackModels []string
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// GenerateRequest is one completion request. ExcludeModels is the explicit
// per-call exclusion list: candidates named there are skipped, which replaces
// the old client-lifetime "already tried" set.
type GenerateRequest struct {
	Messages      []ChatMessage
	Model         string // override; empty uses the configured default
	Temperature   float64
	MaxTokens     int
	ExcludeModels []string
}

// Generator tries a ranked list of models with per-model retry and
// exponential backoff.
type Generator struct {
	client *Client
	cfg    GeneratorConfig
}

func NewGenerator(client *Client, cfg GeneratorConfig) *Generator {
	if client == nil {
		client = NewClient()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBase
	}
	return &Generator{client: client, cfg: cfg}
}

// Generate walks the candidate list; each candidate gets up to MaxRetries
// attempts with delay base * 2^attempt between them. The first success wins.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("messages must be non-empty")
	}

	temperature := clampTemperature(req.Temperature)
	maxTokens := clampMaxTokens(req.MaxTokens)

	candidates := g.candidates(req.Model, req.ExcludeModels)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no candidate models", ErrAllModelsFailed)
	}

	var lastErr error
	for _, model := range candidates {
		for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
			text, err := g.client.Complete(ctx, g.cfg.Provider, model, req.Messages, temperature, maxTokens)
			if err == nil {
				return text, nil
			}
			lastErr = err

			if attempt == g.cfg.MaxRetries-1 {
				break
			}
			delay := g.cfg.RetryBaseDelay * (1 << attempt)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return "", fmt.Errorf("%w after trying %d models (%d attempts each): %v",
		ErrAllModelsFailed, len(candidates), g.cfg.MaxRetries, lastErr)
}

// candidates builds [configured/override model] + fallbacks, deduplicated,
// minus the exclusion list.
func (g *Generator) candidates(override string, exclude []string) []string {
	primary := override
	if primary == "" {
		primary = g.cfg.Model
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, m := range exclude {
		excluded[m] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, m := range append([]string{primary}, g.cfg.FallbackModels...) {
		if m == "" {
			continue
		}
		if _, skip := excluded[m]; skip {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func clampTemperature(t float64) float64 {
	if t < minTemperature {
		return minTemperature
	}
	if t > maxTemperature {
		return maxTemperature
	}
	return t
}

func clampMaxTokens(n int) int {
	if n <= 0 || n > maxTokensCap {
		return maxTokensCap
	}
	return n
}
