package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/cache"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/ratelimit"

	"github.com/andybalholm/brotli"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Zyte
// =============================================================================

func TestZyteFetcher_FetchPage(t *testing.T) {
	tests := []struct {
		name     string
		opts     out.FetchOptions
		respond  map[string]any
		wantHTML string
		wantReq  map[string]any
	}{
		{
			name:     "browser html",
			opts:     out.FetchOptions{Geolocation: "CH", RenderJS: true},
			respond:  map[string]any{"url": "https://shop.ch", "statusCode": 200, "browserHtml": "<html>rendered</html>"},
			wantHTML: "<html>rendered</html>",
			wantReq:  map[string]any{"url": "https://shop.ch", "browserHtml": true, "geolocation": "CH"},
		},
		{
			name: "raw body",
			opts: out.FetchOptions{Geolocation: "AT"},
			respond: map[string]any{
				"url":              "https://shop.ch",
				"statusCode":       200,
				"httpResponseBody": base64.StdEncoding.EncodeToString([]byte("<html>raw</html>")),
			},
			wantHTML: "<html>raw</html>",
			wantReq:  map[string]any{"url": "https://shop.ch", "httpResponseBody": true, "geolocation": "AT"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				if !ok || user != "secret" || pass != "" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &gotReq)
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(tt.respond)
			}))
			defer srv.Close()

			f, err := NewZyteFetcher(ZyteConfig{APIURL: srv.URL, Token: "secret", RetryDelay: time.Millisecond}, zerolog.Nop())
			require.NoError(t, err)

			page, err := f.FetchPage(context.Background(), "https://shop.ch", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHTML, page.HTML)
			assert.Equal(t, 200, page.StatusCode)
			assert.Equal(t, tt.wantReq, gotReq)
		})
	}
}

func TestZyteFetcher_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{name: "transient then ok", statuses: []int{503, 200}, wantCalls: 2},
		{name: "client error is not retried", statuses: []int{400, 200}, wantErr: true, wantCalls: 1},
		{name: "gives up after max attempts", statuses: []int{500, 500, 500, 200}, wantErr: true, wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[n-1]
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte(`{"browserHtml": "<p>ok</p>", "statusCode": 200}`))
				}
			}))
			defer srv.Close()

			f, err := NewZyteFetcher(ZyteConfig{
				APIURL:     srv.URL,
				Token:      "secret",
				MaxRetries: 3,
				RetryDelay: time.Millisecond,
			}, zerolog.Nop())
			require.NoError(t, err)

			page, err := f.FetchPage(context.Background(), "https://shop.ch", out.FetchOptions{RenderJS: true})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "<p>ok</p>", page.HTML)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestZyteFetcher_TargetFailuresKeepBreakerClosed(t *testing.T) {
	tests := []struct {
		name        string
		badStatus   int
		wantHealthy bool
	}{
		{name: "website ban", badStatus: 520, wantHealthy: true},
		{name: "website error", badStatus: 521, wantHealthy: true},
		{name: "api outage", badStatus: 500, wantHealthy: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req zyteRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.URL == "https://banned.example" {
					w.WriteHeader(tt.badStatus)
					return
				}
				_, _ = w.Write([]byte(`{"browserHtml": "<p>ok</p>", "statusCode": 200}`))
			}))
			defer srv.Close()

			f, err := NewZyteFetcher(ZyteConfig{
				APIURL:     srv.URL,
				Token:      "secret",
				MaxRetries: 1,
				RetryDelay: time.Millisecond,
			}, zerolog.Nop())
			require.NoError(t, err)

			ctx := context.Background()
			opts := out.FetchOptions{RenderJS: true}
			for i := 0; i < 8; i++ {
				_, err := f.FetchPage(ctx, "https://banned.example", opts)
				require.Error(t, err)
				assert.Equal(t, tt.wantHealthy, IsTargetError(err))
			}

			page, err := f.FetchPage(ctx, "https://healthy.example", opts)
			if tt.wantHealthy {
				require.NoError(t, err)
				assert.Equal(t, "<p>ok</p>", page.HTML)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "circuit breaker is open")
			}
		})
	}
}

func TestNewZyteFetcher_RequiresToken(t *testing.T) {
	_, err := NewZyteFetcher(ZyteConfig{}, zerolog.Nop())
	require.Error(t, err)
}

// =============================================================================
// HTTP
// =============================================================================

func TestHTTPFetcher_Decoding(t *testing.T) {
	gz := func(s string) []byte {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, _ = w.Write([]byte(s))
		_ = w.Close()
		return buf.Bytes()
	}
	zl := func(s string) []byte {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		_, _ = w.Write([]byte(s))
		_ = w.Close()
		return buf.Bytes()
	}
	rawDeflate := func(s string) []byte {
		var buf bytes.Buffer
		w, _ := flate.NewWriter(&buf, flate.DefaultCompression)
		_, _ = w.Write([]byte(s))
		_ = w.Close()
		return buf.Bytes()
	}
	br := func(s string) []byte {
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		_, _ = w.Write([]byte(s))
		_ = w.Close()
		return buf.Bytes()
	}

	tests := []struct {
		name        string
		encoding    string
		contentType string
		body        []byte
		want        string
	}{
		{name: "plain utf-8", contentType: "text/html; charset=utf-8", body: []byte("<p>Lieferung</p>"), want: "<p>Lieferung</p>"},
		{name: "gzip", encoding: "gzip", contentType: "text/html", body: gz("<p>gzip</p>"), want: "<p>gzip</p>"},
		{name: "deflate", encoding: "deflate", contentType: "text/html", body: zl("<p>zlib</p>"), want: "<p>zlib</p>"},
		{name: "raw deflate", encoding: "deflate", contentType: "text/html", body: rawDeflate("<p>raw</p>"), want: "<p>raw</p>"},
		{name: "brotli", encoding: "br", contentType: "text/html", body: br("<p>brotli</p>"), want: "<p>brotli</p>"},
		{name: "latin-1", contentType: "text/html; charset=iso-8859-1", body: []byte{'c', 'a', 'f', 0xe9}, want: "café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "de-CH,de;q=0.9,fr-CH;q=0.8,it-CH;q=0.7,en;q=0.5", r.Header.Get("Accept-Language"))
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Header().Set("Content-Type", tt.contentType)
				_, _ = w.Write(tt.body)
			}))
			defer srv.Close()

			f := NewHTTPFetcher(HTTPConfig{RetryDelay: time.Millisecond}, zerolog.Nop())
			page, err := f.FetchPage(context.Background(), srv.URL+"/versand", out.FetchOptions{Geolocation: "CH"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.HTML)
			assert.Equal(t, srv.URL+"/versand", page.URL)
		})
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		maxBody   int64
		wantCalls int32
	}{
		{name: "not found is not retried", status: 404, wantCalls: 1},
		{name: "server error is retried", status: 502, wantCalls: 2},
		{name: "body over limit", status: 200, body: "0123456789", maxBody: 5, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := NewHTTPFetcher(HTTPConfig{
				MaxRetries:   2,
				RetryDelay:   time.Millisecond,
				MaxBodyBytes: tt.maxBody,
				Limiter:      ratelimit.NewDomainLimiter(100, 10),
			}, zerolog.Nop())
			_, err := f.FetchPage(context.Background(), srv.URL, out.FetchOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	f := NewHTTPFetcher(HTTPConfig{}, zerolog.Nop())
	_, err := f.FetchPage(context.Background(), "not a url", out.FetchOptions{})
	require.Error(t, err)
}

// =============================================================================
// Cache
// =============================================================================

type countingFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFetcher) FetchPage(_ context.Context, url string, _ out.FetchOptions) (*out.PageResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &out.PageResult{URL: url, HTML: "<p>" + url + "</p>", StatusCode: 200}, nil
}

func TestCachedFetcher(t *testing.T) {
	next := &countingFetcher{}
	f := NewCachedFetcher(next, cache.NewMemoryCache(), 0, zerolog.Nop())
	ctx := context.Background()
	opts := out.FetchOptions{Geolocation: "CH", RenderJS: true}

	first, err := f.FetchPage(ctx, "https://a.ch", opts)
	require.NoError(t, err)
	second, err := f.FetchPage(ctx, "https://a.ch", opts)
	require.NoError(t, err)
	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, int32(1), next.calls.Load())

	_, err = f.FetchPage(ctx, "https://a.ch", out.FetchOptions{Geolocation: "AT", RenderJS: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load(), "different geolocation is a different entry")

	opts.ForceRefresh = true
	_, err = f.FetchPage(ctx, "https://a.ch", opts)
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	next := &countingFetcher{err: errors.New("boom")}
	f := NewCachedFetcher(next, cache.NewMemoryCache(), time.Hour, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := f.FetchPage(context.Background(), "https://a.ch", out.FetchOptions{})
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://a.ch", out.FetchOptions{Geolocation: "CH"})
	b := CacheKey("https://a.ch", out.FetchOptions{Geolocation: "CH", ForceRefresh: true})
	c := CacheKey("https://a.ch", out.FetchOptions{Geolocation: "CH", RenderJS: true})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
