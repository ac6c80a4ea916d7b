// Package filtering decides whether an offer's domain delivers to the target
// country using a cascade of cheap, local filterers.
package filtering

import (
	"context"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
)

// Filterer gives an opinion on a page. It returns nil when it has none, so the
// cascade moves on to the next filterer.
type Filterer interface {
	Name() string
	FilterPage(ctx context.Context, page *domain.Page) (*domain.Decision, error)
}
