package out

import (
	"context"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
)

// RegistryStore persists the known-domain registry per country.
// Load returns empty buckets when nothing has been saved yet.
type RegistryStore interface {
	Load(ctx context.Context, country string) (domain.Buckets, error)
	Save(ctx context.Context, country string, buckets domain.Buckets) error
}

// SaveLocker serializes registry saves across processes.
type SaveLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}
