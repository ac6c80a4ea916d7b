package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCountrySettings_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		country     string
		wantCountry string
		wantLong    string
		wantLangs   int
	}{
		{name: "switzerland", country: "CH", wantCountry: "ch", wantLong: "Switzerland", wantLangs: 32},
		{name: "austria lower case", country: "at", wantCountry: "at", wantLong: "Austria", wantLangs: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := LoadCountrySettings(tt.country, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCountry, s.Country)
			assert.Equal(t, tt.wantLong, s.CountryLong)
			assert.Len(t, s.URL.Languages, tt.wantLangs)
			assert.Equal(t, []string{"known_domains", "url"}, s.FiltererNames())
			assert.True(t, s.SaveNewClassifiedDomains)
			assert.False(t, s.Shipping.UseConcurrency)
		})
	}
}

func TestLoadCountrySettings_LanguageTags(t *testing.T) {
	s, err := LoadCountrySettings("CH", "")
	require.NoError(t, err)

	for _, tag := range []string{"de-ch", "ch-de", "gsw_ch", "ch_wae"} {
		assert.Contains(t, s.URL.Languages, tag)
	}
}

func TestLoadCountrySettings_UnknownCountry(t *testing.T) {
	_, err := LoadCountrySettings("FR", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConfig))
}

func TestLoadCountrySettings_Overrides(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		check   func(t *testing.T, path string)
	}{
		{
			name: "override merges over defaults",
			content: `
CH:
  filterer_name: url
  shipping:
    use_concurrency: true
    max_workers: 8
`,
			check: func(t *testing.T, path string) {
				s, err := LoadCountrySettings("CH", path)
				require.NoError(t, err)
				assert.Equal(t, "url", s.FiltererName)
				assert.True(t, s.Shipping.UseConcurrency)
				assert.Equal(t, 8, s.Shipping.MaxWorkers)
				assert.Equal(t, "Switzerland", s.CountryLong)
				assert.Contains(t, s.Shipping.Keywords, "versand")
			},
		},
		{
			name: "unknown filterer rejected",
			content: `
CH:
  filterer_name: known_domains+magic
`,
			wantErr: true,
		},
		{
			name: "unknown field rejected",
			content: `
CH:
  not_a_field: 1
`,
			wantErr: true,
		},
		{
			name: "too many workers rejected",
			content: `
AT:
  shipping:
    max_workers: 51
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			if tt.wantErr {
				code := "CH"
				if strings.Contains(tt.content, "AT:") {
					code = "AT"
				}
				_, err := LoadCountrySettings(code, path)
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrConfig))
				return
			}
			tt.check(t, path)
		})
	}
}
