package shipping

import (
	"context"
	"fmt"
	"testing"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopSite registers a product page with a versand footer link and an
// answering policy page for host.
func shopSite(f *fakeFetcher, c *fakeClassifier, host, answer string) string {
	product := "https://" + host + "/product"
	marker := "policy of " + host
	f.pages[product] = footerPage("/versand", "Versand")
	f.pages["https://"+host+"/versand"] = policyPage(marker)
	c.answers[marker] = chAnswer(answer, answer+" for "+host)
	return product
}

func TestEngine_PerformFiltering(t *testing.T) {
	ctx := context.Background()
	f, c := newFakeFetcher(), newFakeClassifier()
	yes := shopSite(f, c, "yes.com", "yes")
	no := shopSite(f, c, "no.com", "no")

	store := newMemStore()
	reg := registry.New("ch", store, registry.Options{
		KeysToSave: []string{domain.KeyFiltererName, domain.KeyResult, domain.KeyLabelJustif},
		Logger:     zerolog.Nop(),
	})
	e := newTestEngine(t, chSettings(t), f, c, reg)

	pages := []*domain.Page{
		{Index: 0, URL: yes, FiltererName: domain.FiltererUnknown},
		{Index: 1, URL: "https://shop.ch/x", FiltererName: domain.FiltererURL, Verdict: domain.VerdictPositive},
		{Index: 2, URL: no, FiltererName: domain.FiltererUnknown},
		{Index: 3, URL: "https://known.de/y", FiltererName: domain.FiltererKnownDomains, Verdict: domain.VerdictNegative},
	}

	res, err := e.PerformFiltering(ctx, pages)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 4, res.Usage[UsageFetchCalls])
	assert.Equal(t, 2, res.Usage[UsageLLMCalls])
	assert.Equal(t, 200, res.Usage[UsageLLMPromptTokens])

	assert.Equal(t, domain.FiltererShippingPolicy, pages[0].FiltererName)
	assert.Equal(t, domain.VerdictPositive, pages[0].Verdict)
	assert.Equal(t, "https://yes.com/versand", pages[0].KeptURL)
	assert.Equal(t, domain.FiltererURL, pages[1].FiltererName)
	assert.Equal(t, domain.VerdictNegative, pages[2].Verdict)
	assert.Equal(t, domain.FiltererKnownDomains, pages[3].FiltererName)
	assert.False(t, f.fetched("https://shop.ch/x"))

	entry, v, found := reg.Lookup("yes.com")
	require.True(t, found)
	assert.Equal(t, domain.VerdictPositive, v)
	assert.Equal(t, domain.FiltererShippingPolicy, entry.FiltererName)
	assert.Equal(t, "yes for yes.com", entry.LabelJustif)
	assert.Empty(t, entry.ShippingPolicyPageKept, "not in keys to save")
	assert.Nil(t, entry.ShippingPolicyAnalysis, "not in keys to save")

	_, v, found = reg.Lookup("no.com")
	require.True(t, found)
	assert.Equal(t, domain.VerdictNegative, v)

	assert.Equal(t, 1, store.saves)
	persisted := store.data["ch"]
	assert.Contains(t, persisted.Pos, "yes.com")
	assert.Contains(t, persisted.Neg, "no.com")
}

func TestEngine_PerformFiltering_UnknownOutcomesAreRemembered(t *testing.T) {
	f, c := newFakeFetcher(), newFakeClassifier()
	f.pages["https://plain.ch/p"] = footerPage("/home", "Home")

	reg := registry.New("ch", nil, registry.Options{Logger: zerolog.Nop()})
	e := newTestEngine(t, chSettings(t), f, c, reg)

	pages := []*domain.Page{
		{URL: "https://plain.ch/p", FiltererName: domain.FiltererUnknown},
		{URL: "https://www.etsy.com/listing/1", FiltererName: domain.FiltererUnknown},
	}
	_, err := e.PerformFiltering(context.Background(), pages)
	require.NoError(t, err)

	entry, v, found := reg.Lookup("plain.ch")
	require.True(t, found)
	assert.Equal(t, domain.VerdictUnknown, v)
	assert.Equal(t, JustifNoCandidates, entry.LabelJustif)

	entry, v, found = reg.Lookup("www.etsy.com")
	require.True(t, found)
	assert.Equal(t, domain.VerdictUnknown, v)
	assert.Equal(t, "Domain labeled by hand as unknown", entry.LabelJustif)
}

func TestEngine_PerformFiltering_Concurrent(t *testing.T) {
	f, c := newFakeFetcher(), newFakeClassifier()

	const n = 40
	pages := make([]*domain.Page, n)
	for i := range pages {
		answer := "yes"
		if i%3 == 0 {
			answer = "no"
		}
		url := shopSite(f, c, fmt.Sprintf("shop%02d.com", i), answer)
		pages[i] = &domain.Page{Index: i, URL: url, FiltererName: domain.FiltererUnknown}
	}

	s := chSettings(t)
	s.Shipping.UseConcurrency = true
	s.Shipping.MaxWorkers = 8
	reg := registry.New("ch", nil, registry.Options{Logger: zerolog.Nop()})
	e := newTestEngine(t, s, f, c, reg)

	res, err := e.PerformFiltering(context.Background(), pages)
	require.NoError(t, err)
	assert.Equal(t, n, res.Processed)
	assert.Equal(t, n, res.Usage[UsageLLMCalls])
	assert.Equal(t, n, reg.Len())

	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, fmt.Sprintf("shop%02d.com", i), p.Domain)
		assert.Equal(t, domain.FiltererShippingPolicy, p.FiltererName)
		want := domain.VerdictPositive
		if i%3 == 0 {
			want = domain.VerdictNegative
		}
		assert.Equal(t, want, p.Verdict, "page %d", i)

		_, v, found := reg.Lookup(p.Domain)
		assert.True(t, found)
		assert.Equal(t, want, v)
	}
}

func TestEngine_PerformFiltering_NoSaveWhenDisabled(t *testing.T) {
	f, c := newFakeFetcher(), newFakeClassifier()
	url := shopSite(f, c, "a.com", "yes")

	s := chSettings(t)
	s.SaveNewClassifiedDomains = false
	store := newMemStore()
	reg := registry.New("ch", store, registry.Options{Logger: zerolog.Nop()})
	e := newTestEngine(t, s, f, c, reg)

	_, err := e.PerformFiltering(context.Background(), []*domain.Page{{URL: url, FiltererName: domain.FiltererUnknown}})
	require.NoError(t, err)
	assert.Zero(t, store.saves)
	assert.Equal(t, 1, reg.Pending())
}
