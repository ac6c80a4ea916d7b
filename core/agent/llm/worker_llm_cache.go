package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL keeps answers for a day.
const DefaultCacheTTL = 24 * time.Hour

// CachedClassifier answers repeated prompts from the cache.
type CachedClassifier struct {
	next  out.TextClassifier
	cache out.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ out.TextClassifier = (*CachedClassifier)(nil)

func NewCachedClassifier(next out.TextClassifier, cache out.Cache, ttl time.Duration, log zerolog.Logger) *CachedClassifier {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedClassifier{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedClassifier) ClassifyText(ctx context.Context, prompt string, cfg out.ModelConfig) (*out.Completion, error) {
	key := CacheKey(prompt, cfg)

	if !cfg.ForceRefresh {
		var cached out.Completion
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.log.Warn().Err(err).Msg("llm cache read failed")
		}
		if hit {
			// cached answers cost no tokens
			cached.PromptTokens, cached.CompletionTokens = 0, 0
			return &cached, nil
		}
	}

	completion, err := c.next.ClassifyText(ctx, prompt, cfg)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, completion, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("llm cache write failed")
	}
	return completion, nil
}

// CacheKey hashes the prompt together with the model parameters.
func CacheKey(prompt string, cfg out.ModelConfig) string {
	params, _ := json.Marshal(cfg)
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write(params)
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}
