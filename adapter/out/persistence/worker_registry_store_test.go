package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBuckets() domain.Buckets {
	b := domain.NewBuckets()
	b.Put("shop.ch", domain.VerdictPositive, domain.RegistryEntry{
		FiltererName: domain.FiltererURL,
		Result:       domain.VerdictPositive,
	})
	b.Put("shop.de", domain.VerdictNegative, domain.RegistryEntry{
		FiltererName:           domain.FiltererShippingPolicy,
		Result:                 domain.VerdictNegative,
		LabelJustif:            "Germany only",
		ShippingPolicyAnalysis: map[string]any{"https://shop.de/versand": "fetch failed"},
		ShippingPolicyPageKept: "https://shop.de/versand",
	})
	b.Put("www.etsy.com", domain.VerdictUnknown, domain.RegistryEntry{Result: domain.VerdictUnknown})
	return b
}

func TestRegistryStores_RoundTrip(t *testing.T) {
	sqlite, err := OpenSQLiteRegistryStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	stores := []struct {
		name  string
		store out.RegistryStore
	}{
		{name: "yaml", store: NewYAMLRegistryStore(t.TempDir())},
		{name: "sqlite", store: sqlite},
	}
	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := tt.store.Load(ctx, "CH")
			require.NoError(t, err)
			assert.Equal(t, 0, empty.Len())
			assert.NotNil(t, empty.Pos)

			want := sampleBuckets()
			require.NoError(t, tt.store.Save(ctx, "CH", want))

			got, err := tt.store.Load(ctx, "ch")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// a save replaces the stored state
			smaller := domain.NewBuckets()
			smaller.Put("only.ch", domain.VerdictPositive, domain.RegistryEntry{Result: domain.VerdictPositive})
			require.NoError(t, tt.store.Save(ctx, "CH", smaller))
			got, err = tt.store.Load(ctx, "CH")
			require.NoError(t, err)
			assert.Equal(t, 1, got.Len())

			// countries are kept apart
			other, err := tt.store.Load(ctx, "AT")
			require.NoError(t, err)
			assert.Equal(t, 0, other.Len())
		})
	}
}

func TestYAMLRegistryStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	store := NewYAMLRegistryStore(dir)
	assert.Equal(t, filepath.Join(dir, "ch", "known_domains.yaml"), store.Path("CH"))

	legacy := `domains_pos:
  - shop.ch
domains_unknwn:
domains_neg:
  bad.de:
    RESULT: -1
    filterer_name: shipping_policy
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ch"), 0o755))
	require.NoError(t, os.WriteFile(store.Path("CH"), []byte(legacy), 0o644))

	b, err := store.Load(context.Background(), "CH")
	require.NoError(t, err)

	_, v, ok := b.Lookup("shop.ch")
	require.True(t, ok)
	assert.Equal(t, domain.VerdictPositive, v)

	e, v, ok := b.Lookup("bad.de")
	require.True(t, ok)
	assert.Equal(t, domain.VerdictNegative, v)
	assert.Equal(t, domain.FiltererShippingPolicy, e.FiltererName)
	assert.NotNil(t, b.Unknown)
}

func TestYAMLRegistryStore_WithRegistry(t *testing.T) {
	ctx := context.Background()
	store := NewYAMLRegistryStore(t.TempDir())

	reg, err := registry.Load(ctx, "ch", store, registry.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, reg.Add("shop.de", domain.VerdictNegative, domain.RegistryEntry{
		FiltererName: domain.FiltererShippingPolicy,
		LabelJustif:  "Germany only",
	}))
	require.NoError(t, reg.Save(ctx))

	reloaded, err := registry.Load(ctx, "ch", store, registry.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	e, v, ok := reloaded.Lookup("shop.de")
	require.True(t, ok)
	assert.Equal(t, domain.VerdictNegative, v)
	assert.Equal(t, "Germany only", e.LabelJustif)
}
