package mongodb

import (
	"fmt"
	"testing"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDocument_RoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		urls           int
		wantCompressed bool
	}{
		{name: "small envelope stored as is", urls: 2},
		{name: "large envelope gzipped", urls: 200, wantCompressed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]domain.Result, tt.urls)
			for i := range results {
				results[i] = domain.Result{URL: fmt.Sprintf("https://shop-%d.ch/product/%d", i, i)}
			}
			in := domain.NewPipelineResult("aspirin", "CH", results, time.Now())

			doc, err := toDocument("2026-03-01_10-00-00_aspirin_ana/1_process_country_filtering.json", in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCompressed, doc.IsCompressed)
			assert.Equal(t, "2026-03-01_10-00-00_aspirin_ana", doc.RunDir)
			assert.Equal(t, "1_process_country_filtering.json", doc.File)
			assert.Equal(t, in.Meta.UUID, doc.UUID)
			assert.Equal(t, tt.urls, doc.NumResults)
			if tt.wantCompressed {
				assert.Less(t, doc.CompressedSize, doc.OriginalSize)
			}

			got, err := fromDocument(doc)
			require.NoError(t, err)
			assert.Equal(t, in.URLs(), got.URLs())
			assert.Equal(t, in.Meta.UUID, got.Meta.UUID)
		})
	}
}
