package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/logger"

	"github.com/rs/zerolog"
)

// BatchOptions describe one command-line run.
type BatchOptions struct {
	// Input is a json file holding either a list of urls or a stored
	// PipelineResult to resume from.
	Input   string
	Keyword string
	Country string
	Steps   []string
}

// Batch runs the pipeline once from the command line.
type Batch struct {
	deps   *Dependencies
	runner *pipeline.Runner
	zlog   zerolog.Logger
}

func NewBatch(ctx context.Context, cfg *config.Config) (*Batch, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Batch{
		deps: deps,
		zlog: deps.Log.With().Str("component", "batch").Logger(),
	}, cleanup, nil
}

// Run loads the input, runs the steps and logs a summary.
func (b *Batch) Run(ctx context.Context, opts BatchOptions) (*domain.PipelineResult, *domain.RunRecord, error) {
	country := opts.Country
	if country == "" {
		country = b.deps.Config.Country
	}
	runner, err := b.deps.BuildRunner(ctx, country)
	if err != nil {
		return nil, nil, err
	}
	b.runner = runner

	urls, snapshot, err := LoadInput(opts.Input)
	if err != nil {
		return nil, nil, err
	}

	input := snapshot
	if input == nil {
		if strings.TrimSpace(opts.Keyword) == "" {
			return nil, nil, apperr.MissingField("keyword")
		}
		input = runner.NewInput(opts.Keyword, urls)
	} else {
		b.zlog.Info().
			Str("run", input.Meta.UUID).
			Int("stages_done", len(input.Meta.Stages)).
			Int("results", len(input.Results)).
			Msg("resuming from snapshot")
	}

	result, record, err := runner.Run(ctx, input, opts.Steps)
	if err != nil {
		return nil, record, err
	}

	b.zlog.Info().
		Str("run", record.UUID).
		Str("status", record.Status).
		Int("results", record.NumResults).
		Int("kept", record.NumKept).
		Str("output", record.OutputDir).
		Interface("usage", record.Usage).
		Msg("batch finished")
	return result, record, nil
}

// Close flushes registry additions that were not saved during the run. Nothing
// is written when the country does not save new classifications.
func (b *Batch) Close(ctx context.Context) {
	if b.runner != nil {
		saveRegistry(ctx, b.runner)
	}
}

// LoadInput reads a json array of urls or a stored PipelineResult.
// Exactly one of the returned values is set on success.
func LoadInput(path string) ([]string, *domain.PipelineResult, error) {
	if path == "" {
		return nil, nil, apperr.MissingField("input")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var urls []string
		if err := json.Unmarshal(data, &urls); err != nil {
			return nil, nil, apperr.InvalidInput("input", "expected a json array of urls")
		}
		if len(urls) == 0 {
			return nil, nil, apperr.InvalidInput("input", "no urls")
		}
		return urls, nil, nil
	}

	snapshot, err := pipeline.LoadSnapshot(path)
	if err != nil {
		return nil, nil, err
	}
	return nil, snapshot, nil
}

func saveRegistries(ctx context.Context, deps *Dependencies) {
	if deps == nil || deps.Pool == nil {
		return
	}
	deps.Pool.Each(func(_ string, r *pipeline.Runner) {
		saveRegistry(ctx, r)
	})
}

func saveRegistry(ctx context.Context, r *pipeline.Runner) {
	if !r.SaveEnabled() || r.Registry().Pending() == 0 {
		return
	}
	if err := r.Registry().Save(ctx); err != nil {
		logger.WithError(err).Error("failed to save %s registry", r.Country())
	}
}
