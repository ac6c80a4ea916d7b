// Package fetch implements the page fetch capability: the Zyte extraction API,
// direct HTTP, and a caching decorator over either.
package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/httputil"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/resilience"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultZyteURL is the extraction endpoint.
const DefaultZyteURL = "https://api.zyte.com/v1/extract"

// =============================================================================
// Zyte Fetcher
// =============================================================================

type ZyteConfig struct {
	APIURL     string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

// ZyteFetcher fetches pages through the Zyte API, rendered in a browser when
// the options ask for it.
type ZyteFetcher struct {
	client   *http.Client
	endpoint string
	token    string
	retry    resilience.RetryConfig
	cb       *gobreaker.CircuitBreaker
	log      zerolog.Logger
}

var _ out.PageFetcher = (*ZyteFetcher)(nil)

type zyteRequest struct {
	URL              string `json:"url"`
	BrowserHTML      bool   `json:"browserHtml,omitempty"`
	HTTPResponseBody bool   `json:"httpResponseBody,omitempty"`
	Geolocation      string `json:"geolocation,omitempty"`
}

type zyteResponse struct {
	URL              string `json:"url"`
	StatusCode       int    `json:"statusCode"`
	BrowserHTML      string `json:"browserHtml"`
	HTTPResponseBody string `json:"httpResponseBody"`
}

func NewZyteFetcher(cfg ZyteConfig, log zerolog.Logger) (*ZyteFetcher, error) {
	if cfg.Token == "" {
		return nil, apperr.ConfigError("ZYTE_API_TOKEN is required for the zyte fetcher")
	}
	endpoint := cfg.APIURL
	if endpoint == "" {
		endpoint = DefaultZyteURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httputil.NewOptimizedClient(httputil.ZyteClientConfig(cfg.Timeout))
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.Delay = cfg.RetryDelay
	}

	log = log.With().Str("component", "zyte").Logger()
	breaker := resilience.DefaultBreakerConfig("zyte-api")
	breaker.Ignore = IsTargetError
	return &ZyteFetcher{
		client:   client,
		endpoint: endpoint,
		token:    cfg.Token,
		retry:    retry,
		cb:       resilience.NewBreaker(breaker, log),
		log:      log,
	}, nil
}

func (f *ZyteFetcher) FetchPage(ctx context.Context, url string, opts out.FetchOptions) (*out.PageResult, error) {
	payload, err := json.Marshal(zyteRequest{
		URL:              url,
		BrowserHTML:      opts.RenderJS,
		HTTPResponseBody: !opts.RenderJS,
		Geolocation:      opts.Geolocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode zyte request: %w", err)
	}

	start := time.Now()
	var page *out.PageResult
	err = resilience.Retry(ctx, f.retry, func(ctx context.Context) error {
		resp, err := resilience.Execute(f.cb, func() (*zyteResponse, error) {
			return f.call(ctx, payload)
		})
		if err != nil {
			f.log.Debug().Err(err).Str("url", url).Msg("zyte call failed")
			return err
		}
		html, err := resp.html()
		if err != nil {
			return resilience.Permanent(err)
		}
		page = &out.PageResult{URL: url, HTML: html, StatusCode: resp.StatusCode}
		return nil
	})
	elapsed := time.Since(start)
	metrics.RecordLatency(metrics.CapabilityFetch, elapsed, err)

	if err != nil {
		return nil, apperr.ExternalError("zyte", err)
	}
	page.Elapsed = elapsed
	return page, nil
}

func (f *ZyteFetcher) call(ctx context.Context, payload []byte) (*zyteResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.SetBasicAuth(f.token, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read zyte response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("zyte returned %d: %s", resp.StatusCode, truncate(body, 200))
		if resp.StatusCode == statusWebsiteBan || resp.StatusCode == statusWebsiteError {
			return nil, &TargetError{Status: resp.StatusCode, Err: err}
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var zr zyteResponse
	if err := json.Unmarshal(body, &zr); err != nil {
		return nil, fmt.Errorf("failed to decode zyte response: %w", err)
	}
	return &zr, nil
}

// Zyte statuses that describe the target site, not the API.
const (
	statusWebsiteBan   = 520
	statusWebsiteError = 521
)

// TargetError is a fetch failure caused by the target site. It is retried but
// does not trip the breaker, so one banned site cannot block the others.
type TargetError struct {
	Status int
	Err    error
}

func (e *TargetError) Error() string { return e.Err.Error() }
func (e *TargetError) Unwrap() error { return e.Err }

// IsTargetError reports whether err was caused by the target site.
func IsTargetError(err error) bool {
	var t *TargetError
	return errors.As(err, &t)
}

// html prefers the rendered DOM and falls back to the raw response body.
func (r *zyteResponse) html() (string, error) {
	if r.BrowserHTML != "" {
		return r.BrowserHTML, nil
	}
	if r.HTTPResponseBody == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(r.HTTPResponseBody)
	if err != nil {
		return "", fmt.Errorf("failed to decode httpResponseBody: %w", err)
	}
	return string(raw), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
