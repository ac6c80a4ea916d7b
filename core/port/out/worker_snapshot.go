package out

import (
	"context"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
)

// SnapshotSink stores the pipeline envelope after a step under a run-relative name.
type SnapshotSink interface {
	Put(ctx context.Context, name string, result *domain.PipelineResult) error
}

// RunRepository keeps the history of pipeline runs.
type RunRepository interface {
	Record(ctx context.Context, run *domain.RunRecord) error
	Get(ctx context.Context, uuid string) (*domain.RunRecord, error)
	ListRecent(ctx context.Context, country string, limit int) ([]*domain.RunRecord, error)
}
