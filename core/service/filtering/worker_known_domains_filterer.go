package filtering

import (
	"context"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"

	"github.com/rs/zerolog"
)

// KnownDomainsFilterer answers from the registry. It never writes to it.
type KnownDomainsFilterer struct {
	registry *registry.Registry
	log      zerolog.Logger
}

func NewKnownDomainsFilterer(reg *registry.Registry, log zerolog.Logger) *KnownDomainsFilterer {
	return &KnownDomainsFilterer{registry: reg, log: log}
}

func (f *KnownDomainsFilterer) Name() string { return domain.FiltererKnownDomains }

func (f *KnownDomainsFilterer) Registry() *registry.Registry { return f.registry }

func (f *KnownDomainsFilterer) FilterPage(_ context.Context, page *domain.Page) (*domain.Decision, error) {
	if page.Domain == "" {
		page.Domain = DomainOf(page.URL)
	}

	entry, v, ok := f.registry.Lookup(page.Domain)
	if !ok {
		return nil, nil
	}

	f.log.Debug().
		Str("domain", page.Domain).
		Str("verdict", v.String()).
		Msg("domain already classified")

	return &domain.Decision{
		Verdict:     v,
		LabelJustif: entry.LabelJustif,
		Analysis:    entry.ShippingPolicyAnalysis,
		KeptURL:     entry.ShippingPolicyPageKept,
	}, nil
}
