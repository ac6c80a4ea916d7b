package pipeline

import (
	"context"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/shipping"

	"github.com/rs/zerolog"
)

// DeliveryPolicyExtractor runs the shipping-policy engine over the results
// the cascade left unknown.
type DeliveryPolicyExtractor struct {
	engine *shipping.Engine
	run    *Run
	log    zerolog.Logger
}

var _ Step = (*DeliveryPolicyExtractor)(nil)

func NewDeliveryPolicyExtractor(engine *shipping.Engine, run *Run, log zerolog.Logger) *DeliveryPolicyExtractor {
	return &DeliveryPolicyExtractor{
		engine: engine,
		run:    run,
		log:    log.With().Str("step", StepDeliveryPolicyExtractor).Logger(),
	}
}

func (s *DeliveryPolicyExtractor) Name() string { return StepDeliveryPolicyExtractor }

func (s *DeliveryPolicyExtractor) ApplyStep(ctx context.Context, prev *domain.PipelineResult) (*domain.PipelineResult, error) {
	pages := make([]*domain.Page, len(prev.Results))
	for i := range prev.Results {
		pages[i] = prev.Results[i].Page()
		pages[i].Index = i
	}

	start := time.Now()
	batch, err := s.engine.PerformFiltering(ctx, pages)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	result := prev.AddStage(s.Name(), mapBack(prev.Results, pages), elapsed, batch.Usage)
	if _, err := s.run.Store(ctx, FileDeliveryPolicy, result); err != nil {
		return nil, err
	}
	s.run.SetStatus(domain.StepSucceeded(s.Name()))

	s.log.Info().
		Int("results", len(result.Results)).
		Int("processed", batch.Processed).
		Dur("elapsed", elapsed).
		Msg("step done")
	return result, nil
}
