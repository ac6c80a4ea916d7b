package filtering

import (
	"context"
	"slices"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/rs/zerolog"
)

// =============================================================================
// Master Filterer
// =============================================================================
//
// The cascade runs the configured filterers in order:
//   known_domains → url → (anything else registered)
// The first filterer with a decision wins. Pages nobody decides on end up
// UNKNOWN under the name "unknown".

// MasterFilterer runs the filterer cascade and keeps the registry up to date.
type MasterFilterer struct {
	filterers []Filterer
	registry  *registry.Registry
	writeBack bool
	save      bool
	log       zerolog.Logger
}

// NewMasterFilterer builds the cascade described by deps.Settings.FiltererName.
func NewMasterFilterer(factory *Factory, deps Dependencies) (*MasterFilterer, error) {
	if deps.Settings == nil {
		return nil, apperr.ConfigError("country settings are required")
	}
	names := deps.Settings.FiltererNames()
	filterers, err := factory.Build(names, deps)
	if err != nil {
		return nil, err
	}

	writeBack := slices.Contains(names, domain.FiltererKnownDomains)
	return &MasterFilterer{
		filterers: filterers,
		registry:  deps.Registry,
		writeBack: writeBack && deps.Registry != nil,
		save:      deps.Settings.SaveNewClassifiedDomains,
		log:       deps.Logger.With().Str("filterer", deps.Settings.FiltererName).Logger(),
	}, nil
}

// Names returns the cascade order.
func (m *MasterFilterer) Names() []string {
	names := make([]string, len(m.filterers))
	for i, f := range m.filterers {
		names[i] = f.Name()
	}
	return names
}

// Classify runs the cascade on a bare url.
func (m *MasterFilterer) Classify(ctx context.Context, rawURL string) (domain.Verdict, string) {
	page := &domain.Page{URL: rawURL}
	m.FilterPage(ctx, page)
	return page.Verdict, page.FiltererName
}

// FilterPage assigns a verdict and a filterer name to page. When a filterer
// other than the registry decides, the domain is added to the registry so
// later pages of the same domain short-circuit.
func (m *MasterFilterer) FilterPage(ctx context.Context, page *domain.Page) {
	if m.Evaluate(ctx, page) {
		m.remember(page)
	}
}

// Evaluate runs the cascade on page without touching the registry. It
// reports whether a filterer decided.
func (m *MasterFilterer) Evaluate(ctx context.Context, page *domain.Page) bool {
	if page.Domain == "" {
		page.Domain = DomainOf(page.URL)
	}

	for _, f := range m.filterers {
		d, err := f.FilterPage(ctx, page)
		if err != nil {
			m.log.Warn().Err(err).
				Str("url", page.URL).
				Str("step", f.Name()).
				Msg("filterer failed, trying next")
			continue
		}
		if d == nil {
			continue
		}

		page.Apply(f.Name(), d)
		return true
	}

	page.Apply(domain.FiltererUnknown, &domain.Decision{Verdict: domain.VerdictUnknown})
	return false
}

func (m *MasterFilterer) remember(page *domain.Page) {
	if !m.writeBack {
		return
	}
	if page.FiltererName == domain.FiltererKnownDomains || page.FiltererName == domain.FiltererUnknown {
		return
	}
	if err := m.registry.Add(page.Domain, page.Verdict, page.Entry()); err != nil {
		m.log.Warn().Err(err).
			Str("domain", page.Domain).
			Msg("failed to add domain to registry")
	}
}

// PerformFiltering filters every page in order and saves the registry at the
// end when new domains should be kept. Only the save error is returned.
func (m *MasterFilterer) PerformFiltering(ctx context.Context, pages []*domain.Page) error {
	counts := map[string]int{}
	for _, p := range pages {
		m.FilterPage(ctx, p)
		counts[p.FiltererName]++
	}

	m.log.Info().
		Int("pages", len(pages)).
		Int("known_domains", counts[domain.FiltererKnownDomains]).
		Int("url", counts[domain.FiltererURL]).
		Int("unknown", counts[domain.FiltererUnknown]).
		Msg("country filtering done")

	if m.writeBack && m.save {
		return m.registry.Save(ctx)
	}
	return nil
}
