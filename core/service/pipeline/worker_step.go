// Package pipeline wraps the country filterers into pipeline steps that take
// and return the shared PipelineResult envelope.
package pipeline

import (
	"context"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
)

// Step names as they appear in stage metadata and run status.
const (
	StepCountryFilterer         = "CountryFilterer"
	StepDeliveryPolicyExtractor = "DeliveryPolicyExtractor"
)

// Snapshot file names.
const (
	FileCountryFiltering = "process_country_filtering.json"
	FileDeliveryPolicy   = "process_delivery_policy.json"
)

// Short names accepted on the command line and the API.
const (
	StepKeyCountry  = "country"
	StepKeyDelivery = "delivery"
)

// DefaultSteps runs the cascade and then the shipping-policy fallback.
var DefaultSteps = []string{StepKeyCountry, StepKeyDelivery}

// Step is one stage of the pipeline.
type Step interface {
	Name() string
	ApplyStep(ctx context.Context, prev *domain.PipelineResult) (*domain.PipelineResult, error)
}

// mapBack copies filtered pages onto a copy of results, matching by url.
// When a url appears more than once, its first page is used.
func mapBack(results []domain.Result, pages []*domain.Page) []domain.Result {
	byURL := make(map[string]*domain.Page, len(pages))
	for _, p := range pages {
		if _, seen := byURL[p.URL]; !seen {
			byURL[p.URL] = p
		}
	}

	out := make([]domain.Result, 0, len(results))
	for _, r := range results {
		p, ok := byURL[r.URL]
		if !ok {
			continue
		}
		r.ApplyPage(p)
		out = append(out, r)
	}
	return out
}
