package domain

import "strings"

// CountrySettings drives filtering and delivery-policy detection for one target country.
type CountrySettings struct {
	// Country is the lower-case code used in prompts, answer keys and registry paths ("ch").
	Country     string `yaml:"country"`
	CountryLong string `yaml:"country_long"`

	// FiltererName is the cascade description, e.g. "known_domains+url".
	FiltererName string `yaml:"filterer_name"`

	URL      URLTokens        `yaml:"url"`
	Shipping ShippingSettings `yaml:"shipping"`

	KeysToSave               []string `yaml:"keys_to_save"`
	SaveNewClassifiedDomains bool     `yaml:"save_new_classified_domains"`
}

// FiltererNames splits the cascade description on "+".
func (s *CountrySettings) FiltererNames() []string {
	var names []string
	for _, n := range strings.Split(s.FiltererName, "+") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// URLTokens are the per-country token lists the url heuristic matches against.
type URLTokens struct {
	Countries       []string `yaml:"countries"`
	TopLevelDomains []string `yaml:"top_level_domains"`
	SubLevelDomains []string `yaml:"sub_level_domains"`
	Languages       []string `yaml:"languages"`
	Currencies      []string `yaml:"currencies"`
}

// ShippingSettings configures the shipping-policy engine.
type ShippingSettings struct {
	Keywords []string `yaml:"keywords"`

	// Hand-curated overrides, checked before any fetch.
	DomainsPos     []string `yaml:"domains_pos"`
	DomainsUnknown []string `yaml:"domains_unknwn"`
	DomainsNeg     []string `yaml:"domains_neg"`

	// PromptTemplate may use {country} and {country_long}.
	PromptTemplate string `yaml:"prompt_template"`

	LLM   ModelSettings `yaml:"llm"`
	Fetch FetchSettings `yaml:"fetch"`

	UseConcurrency bool `yaml:"use_concurrency"`
	MaxWorkers     int  `yaml:"max_workers"`
	// MaxCandidates bounds the shipping-policy pages tried per product page. Zero means no bound.
	MaxCandidates int `yaml:"max_candidates"`
}

// ModelSettings are the language-model parameters.
type ModelSettings struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// FetchSettings are passed to the page fetcher for product and policy pages.
type FetchSettings struct {
	Geolocation string `yaml:"geolocation"`
	RenderJS    bool   `yaml:"render_js"`
}
