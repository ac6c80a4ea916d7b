package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetJSON(ctx, "k", page{URL: "https://shop.ch"}, time.Minute))

	var got page
	hit, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "https://shop.ch", got.URL)

	now = now.Add(2 * time.Minute)
	hit, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, c.Len())
}

func TestTieredCache_ReadsThroughL2(t *testing.T) {
	ctx := context.Background()
	l2 := NewMemoryCache()

	writer := NewTieredCache(l2, TieredConfig{})
	require.NoError(t, writer.SetJSON(ctx, "fetch:1", page{URL: "https://shop.ch", HTML: "<p>hi</p>"}, time.Hour))

	// a second process shares only l2
	reader := NewTieredCache(l2, TieredConfig{})
	assert.Equal(t, 0, reader.l1.Len())

	var got page
	hit, err := reader.GetJSON(ctx, "fetch:1", &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "<p>hi</p>", got.HTML)
	assert.Equal(t, 1, reader.l1.Len())

	require.NoError(t, reader.Delete(ctx, "fetch:1"))
	hit, err = writer.GetJSON(ctx, "fetch:1", &got)
	require.NoError(t, err)
	assert.True(t, hit, "writer still holds its own L1 copy")

	hit, err = NewTieredCache(l2, TieredConfig{}).GetJSON(ctx, "fetch:1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTieredCache_NilL2(t *testing.T) {
	ctx := context.Background()
	c := NewTieredCache(nil, TieredConfig{L1MaxSize: 2})

	var got page
	hit, err := c.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, "a", page{URL: "a"}, 0))
	hit, err = c.GetJSON(ctx, "a", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "a", got.URL)
}

func TestL1Cache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewL1Cache(2, time.Minute)
	c.Set("a", []byte(`1`), 0)
	c.Set("b", []byte(`2`), 0)

	_, ok := c.Get("a") // a is now most recent
	require.True(t, ok)

	c.Set("c", []byte(`3`), 0)
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestL1Cache_TTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewL1Cache(10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("short", []byte(`1`), 10*time.Second)
	c.Set("capped", []byte(`2`), time.Hour)

	now = now.Add(30 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("capped")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("capped")
	assert.False(t, ok)
}
