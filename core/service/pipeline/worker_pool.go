package pipeline

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
)

// BuildFunc creates the runner for one upper-case country code.
type BuildFunc func(ctx context.Context, country string) (*Runner, error)

// Pool hands out one long-lived runner per country, built on first use.
// Runners of the same country share a registry, so the API and scheduled
// runs in one process never load it twice.
type Pool struct {
	countries []string
	build     BuildFunc

	mu      sync.Mutex
	runners map[string]*Runner
}

func NewPool(countries []string, build BuildFunc) *Pool {
	codes := make([]string, 0, len(countries))
	for _, c := range countries {
		codes = append(codes, strings.ToUpper(strings.TrimSpace(c)))
	}
	slices.Sort(codes)
	return &Pool{
		countries: slices.Compact(codes),
		build:     build,
		runners:   make(map[string]*Runner),
	}
}

// Countries returns the supported country codes.
func (p *Pool) Countries() []string {
	return slices.Clone(p.countries)
}

// Runner returns the runner for country, building it on first use. A failed
// build is not cached.
func (p *Pool) Runner(ctx context.Context, country string) (*Runner, error) {
	code := strings.ToUpper(strings.TrimSpace(country))
	if !slices.Contains(p.countries, code) {
		return nil, apperr.InvalidInput("country", "unsupported country "+country).
			WithDetail("allowed", p.countries)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.runners[code]; ok {
		return r, nil
	}
	r, err := p.build(ctx, code)
	if err != nil {
		return nil, err
	}
	p.runners[code] = r
	return r, nil
}

// Each calls fn for every runner built so far.
func (p *Pool) Each(fn func(country string, r *Runner)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, code := range p.countries {
		if r, ok := p.runners[code]; ok {
			fn(code, r)
		}
	}
}
