package pipeline

import (
	"context"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/filtering"

	"github.com/rs/zerolog"
)

// CountryFilterer runs the filterer cascade over every result.
type CountryFilterer struct {
	master *filtering.MasterFilterer
	run    *Run
	log    zerolog.Logger
}

var _ Step = (*CountryFilterer)(nil)

func NewCountryFilterer(master *filtering.MasterFilterer, run *Run, log zerolog.Logger) *CountryFilterer {
	return &CountryFilterer{
		master: master,
		run:    run,
		log:    log.With().Str("step", StepCountryFilterer).Logger(),
	}
}

func (s *CountryFilterer) Name() string { return StepCountryFilterer }

func (s *CountryFilterer) ApplyStep(ctx context.Context, prev *domain.PipelineResult) (*domain.PipelineResult, error) {
	pages := make([]*domain.Page, len(prev.Results))
	for i, r := range prev.Results {
		pages[i] = &domain.Page{Index: i, URL: r.URL}
	}

	start := time.Now()
	err := s.master.PerformFiltering(ctx, pages)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	result := prev.AddStage(s.Name(), mapBack(prev.Results, pages), elapsed, nil)
	if _, err := s.run.Store(ctx, FileCountryFiltering, result); err != nil {
		return nil, err
	}
	s.run.SetStatus(domain.StepSucceeded(s.Name()))

	s.log.Info().
		Int("results", len(result.Results)).
		Dur("elapsed", elapsed).
		Msg("step done")
	return result, nil
}
