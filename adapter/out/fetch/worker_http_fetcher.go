package fetch

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/httputil"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/ratelimit"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/resilience"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; nightcrawler/1.0)"

// =============================================================================
// HTTP Fetcher
// =============================================================================

type HTTPConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	MaxRetries   int
	RetryDelay   time.Duration
	Limiter      *ratelimit.DomainLimiter
	HTTPClient   *http.Client
}

// HTTPFetcher downloads pages directly. It cannot render javascript, so
// RenderJS is ignored; bodies are decoded to UTF-8.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	retry        resilience.RetryConfig
	limiter      *ratelimit.DomainLimiter
	log          zerolog.Logger
}

var _ out.PageFetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(cfg HTTPConfig, log zerolog.Logger) *HTTPFetcher {
	client := cfg.HTTPClient
	if client == nil {
		client = httputil.NewOptimizedClient(httputil.CrawlClientConfig(cfg.Timeout))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.Delay = cfg.RetryDelay
	}

	return &HTTPFetcher{
		client:       client,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		retry:        retry,
		limiter:      cfg.Limiter,
		log:          log.With().Str("component", "http_fetcher").Logger(),
	}
}

func (f *HTTPFetcher) FetchPage(ctx context.Context, rawURL string, opts out.FetchOptions) (*out.PageResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, apperr.InvalidInput("url", fmt.Sprintf("cannot fetch %q", rawURL))
	}

	start := time.Now()
	var page *out.PageResult
	err = resilience.Retry(ctx, f.retry, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx, u.Hostname()); err != nil {
			return resilience.Permanent(err)
		}
		p, err := f.get(ctx, u, opts)
		if err != nil {
			f.log.Debug().Err(err).Str("url", rawURL).Msg("fetch failed")
			return err
		}
		page = p
		return nil
	})
	elapsed := time.Since(start)
	metrics.RecordLatency(metrics.CapabilityFetch, elapsed, err)

	if err != nil {
		return nil, apperr.ExternalError("http", err)
	}
	page.Elapsed = elapsed
	return page, nil
}

func (f *HTTPFetcher) get(ctx context.Context, u *url.URL, opts out.FetchOptions) (*out.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if lang := acceptLanguage(opts.Geolocation); lang != "" {
		req.Header.Set("Accept-Language", lang)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("%s returned %d", u.Host, resp.StatusCode)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	final := u.String()
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &out.PageResult{URL: final, HTML: body, StatusCode: resp.StatusCode}, nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) (string, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl, err := deflateReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("deflate decode: %w", err)
		}
		defer fl.Close()
		reader = fl
	}

	raw, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > f.maxBodyBytes {
		return "", resilience.Permanent(fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes))
	}

	utf8Reader, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("charset decode: %w", err))
	}
	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", resilience.Permanent(fmt.Errorf("charset decode: %w", err))
	}
	return string(body), nil
}

// deflateReader decodes a "deflate" body. The encoding is zlib-wrapped, but
// some servers send a raw deflate stream, so the zlib header is checked first.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err == nil && header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// acceptLanguage maps a geolocation to an Accept-Language header.
func acceptLanguage(geo string) string {
	switch strings.ToUpper(geo) {
	case "CH":
		return "de-CH,de;q=0.9,fr-CH;q=0.8,it-CH;q=0.7,en;q=0.5"
	case "AT":
		return "de-AT,de;q=0.9,en;q=0.5"
	case "":
		return ""
	default:
		return "en;q=0.8"
	}
}
