package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL keeps fetched pages for seven days minus six hours.
const DefaultCacheTTL = (7*24 - 6) * time.Hour

// CachedFetcher serves repeated fetches from the cache and collapses
// concurrent fetches of the same page into one call.
type CachedFetcher struct {
	next  out.PageFetcher
	cache out.Cache
	ttl   time.Duration
	group singleflight.Group
	log   zerolog.Logger
}

var _ out.PageFetcher = (*CachedFetcher)(nil)

func NewCachedFetcher(next out.PageFetcher, cache out.Cache, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedFetcher{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedFetcher) FetchPage(ctx context.Context, url string, opts out.FetchOptions) (*out.PageResult, error) {
	key := CacheKey(url, opts)

	if !opts.ForceRefresh {
		var cached out.PageResult
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.log.Warn().Err(err).Msg("fetch cache read failed")
		}
		if hit {
			c.log.Debug().Str("url", url).Msg("using cached page")
			return &cached, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		page, err := c.next.FetchPage(ctx, url, opts)
		if err != nil {
			return nil, err
		}
		if err := c.cache.SetJSON(ctx, key, page, c.ttl); err != nil {
			c.log.Warn().Err(err).Msg("fetch cache write failed")
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	page := *v.(*out.PageResult)
	return &page, nil
}

// CacheKey hashes the url with the options that change the fetched content.
func CacheKey(url string, opts out.FetchOptions) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write([]byte(opts.Geolocation))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(opts.RenderJS)))
	return "fetch:" + hex.EncodeToString(h.Sum(nil))
}
