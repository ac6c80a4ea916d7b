package snapshot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func sampleResult() *domain.PipelineResult {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.NewPipelineResult("aspirin", "CH", []domain.Result{
		{URL: "https://shop.ch/p/1"},
		{URL: "https://shop.de/p/2"},
	}, now)
}

func TestFileSink_Put(t *testing.T) {
	root := t.TempDir()
	sink := NewFileSink(root)
	name := "2026-03-01_10-00-00_aspirin_ana/1_process_country_filtering.json"

	require.NoError(t, sink.Put(context.Background(), name, sampleResult()))

	path := filepath.Join(root, "2026-03-01_10-00-00_aspirin_ana", "1_process_country_filtering.json")
	assert.Equal(t, path, sink.Path(name))
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := pipeline.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "aspirin", loaded.Meta.Keyword)
	assert.Equal(t, []string{"https://shop.ch/p/1", "https://shop.de/p/2"}, loaded.URLs())
}

func TestBlobName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		in     string
		want   string
	}{
		{name: "flattened", prefix: "nightcrawler", in: "run/1_a.json", want: "nightcrawler/run_1_a.json"},
		{name: "prefix slashes trimmed", prefix: "/data/out/", in: "run/2_b.json", want: "data/out/run_2_b.json"},
		{name: "no prefix", prefix: "", in: "run/1_a.json", want: "run_1_a.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BlobName(tt.prefix, tt.in))
		})
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Put(context.Context, string, *domain.PipelineResult) error {
	f.calls++
	return errors.New("disk full")
}

func TestMultiSink(t *testing.T) {
	failing := &failingSink{}
	root := t.TempDir()
	multi := MultiSink{failing, NewFileSink(root)}

	err := multi.Put(context.Background(), "run/1_a.json", sampleResult())
	require.Error(t, err)
	assert.Equal(t, 1, failing.calls)

	_, statErr := os.Stat(filepath.Join(root, "run", "1_a.json"))
	assert.NoError(t, statErr, "later sinks still receive the snapshot")
}

func TestGCSSink_Put(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "nightcrawler/run_1_a.json", "bucket": "snapshots"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	sink, err := NewGCSSinkWithOptions(ctx, "snapshots", "nightcrawler", zerolog.Nop(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	require.NoError(t, sink.Put(ctx, "run/1_a.json", sampleResult()))
	assert.True(t, strings.HasSuffix(gotPath, "/b/snapshots/o"), gotPath)
	assert.Contains(t, gotBody, "nightcrawler/run_1_a.json")
	assert.Contains(t, gotBody, "https://shop.de/p/2")
}

func TestNewGCSSink_RequiresBucket(t *testing.T) {
	_, err := NewGCSSinkWithOptions(context.Background(), "", "x", zerolog.Nop(), option.WithoutAuthentication())
	require.Error(t, err)
}
