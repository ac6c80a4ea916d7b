package filtering

import (
	"fmt"
	"sort"
	"sync"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/rs/zerolog"
)

// Dependencies are handed to every filterer constructor.
type Dependencies struct {
	Settings *domain.CountrySettings
	Registry *registry.Registry
	Logger   zerolog.Logger
}

// Constructor builds one named filterer.
type Constructor func(deps Dependencies) (Filterer, error)

// Factory maps filterer names to constructors.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory returns a factory that knows the local filterers.
func NewFactory() *Factory {
	f := &Factory{ctors: make(map[string]Constructor)}
	f.Register(domain.FiltererKnownDomains, func(deps Dependencies) (Filterer, error) {
		if deps.Registry == nil {
			return nil, apperr.ConfigError("known_domains filterer needs a registry")
		}
		return NewKnownDomainsFilterer(deps.Registry, deps.Logger), nil
	})
	f.Register(domain.FiltererURL, func(deps Dependencies) (Filterer, error) {
		return NewURLFilterer(deps.Settings.URL), nil
	})
	return f
}

// Register adds or replaces a constructor.
func (f *Factory) Register(name string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[name] = ctor
}

// Names lists the registered filterer names.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.namesLocked()
}

// Build instantiates the filterers in order. Any unknown name fails the whole build.
func (f *Factory) Build(names []string, deps Dependencies) ([]Filterer, error) {
	if len(names) == 0 {
		return nil, apperr.ConfigError("empty filterer cascade")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	filterers := make([]Filterer, 0, len(names))
	for _, name := range names {
		ctor, ok := f.ctors[name]
		if !ok {
			return nil, apperr.ConfigError(fmt.Sprintf("unknown filterer: %s", name)).
				WithDetail("known", f.namesLocked())
		}
		flt, err := ctor(deps)
		if err != nil {
			return nil, fmt.Errorf("failed to build filterer %s: %w", name, err)
		}
		filterers = append(filterers, flt)
	}
	return filterers, nil
}

func (f *Factory) namesLocked() []string {
	names := make([]string, 0, len(f.ctors))
	for n := range f.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
