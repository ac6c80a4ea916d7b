package filtering

import (
	"context"
	"slices"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
)

// URLFilterer looks for country signals in the url itself. It only ever
// answers POSITIVE; absence of a signal is not evidence of anything.
type URLFilterer struct {
	hostTokens []string // top-level domains, checked against the last label
	subTokens  []string // top-level and sub-level domains, checked against other labels
	pathTokens []string // countries, languages and currencies
}

// NewURLFilterer builds the filterer from the country's token lists.
func NewURLFilterer(tokens domain.URLTokens) *URLFilterer {
	sub := slices.Concat(tokens.TopLevelDomains, tokens.SubLevelDomains)
	path := slices.Concat(tokens.Countries, tokens.Languages, tokens.Currencies)
	return &URLFilterer{
		hostTokens: tokens.TopLevelDomains,
		subTokens:  sub,
		pathTokens: path,
	}
}

func (f *URLFilterer) Name() string { return domain.FiltererURL }

func (f *URLFilterer) FilterPage(_ context.Context, page *domain.Page) (*domain.Decision, error) {
	if f.Match(page.URL) {
		return &domain.Decision{Verdict: domain.VerdictPositive}, nil
	}
	return nil, nil
}

// Match reports whether any part of the url equals one of the configured tokens.
// A url without a host is still checked on its path and query.
func (f *URLFilterer) Match(rawURL string) bool {
	p := ParseURL(rawURL)
	hasHost := p.Domain != ""

	switch {
	case hasHost && slices.Contains(f.hostTokens, p.TopLevelDomain):
		return true
	case hasHost && containsAny(p.SubLevelDomains, f.subTokens):
		return true
	case containsAny(p.PathSegments, f.pathTokens):
		return true
	case containsAny(p.QueryTokens, f.pathTokens):
		return true
	}
	return false
}

func containsAny(values, tokens []string) bool {
	for _, v := range values {
		if v != "" && slices.Contains(tokens, v) {
			return true
		}
	}
	return false
}
