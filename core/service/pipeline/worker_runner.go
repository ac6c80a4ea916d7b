package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/filtering"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/shipping"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/rs/zerolog"
)

// =============================================================================
// Runner
// =============================================================================

// RunnerDeps wires a Runner. Runs and Sink may be nil.
type RunnerDeps struct {
	Settings   *domain.CountrySettings
	Registry   *registry.Registry
	Fetcher    out.PageFetcher
	Classifier out.TextClassifier
	Sink       out.SnapshotSink
	Runs       out.RunRepository
	User       string
	Logger     zerolog.Logger
}

// Runner executes pipeline runs for one country. The cascade and the engine
// share the runner's registry, so every run sees what earlier runs learned.
type Runner struct {
	settings *domain.CountrySettings
	registry *registry.Registry
	master   *filtering.MasterFilterer
	engine   *shipping.Engine
	sink     out.SnapshotSink
	runs     out.RunRepository
	user     string
	log      zerolog.Logger
}

// NewRunner builds the cascade and the engine. Configuration errors, such as
// an unknown filterer name, are returned here rather than during a run.
func NewRunner(deps RunnerDeps) (*Runner, error) {
	if deps.Settings == nil {
		return nil, apperr.ConfigError("country settings are required")
	}
	if deps.Registry == nil {
		return nil, apperr.ConfigError("registry is required")
	}
	log := deps.Logger.With().Str("country", deps.Settings.Country).Logger()

	factory := NewFactory(deps.Fetcher, deps.Classifier)
	master, err := filtering.NewMasterFilterer(factory, filtering.Dependencies{
		Settings: deps.Settings,
		Registry: deps.Registry,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	engine, err := shipping.NewEngine(deps.Settings, deps.Fetcher, deps.Classifier, deps.Registry, log)
	if err != nil {
		return nil, err
	}

	return &Runner{
		settings: deps.Settings,
		registry: deps.Registry,
		master:   master,
		engine:   engine,
		sink:     deps.Sink,
		runs:     deps.Runs,
		user:     deps.User,
		log:      log,
	}, nil
}

// NewFactory returns the filterer factory with the shipping-policy engine
// registered next to the local filterers. In a cascade the engine does not
// write to the registry itself; the master filterer does.
func NewFactory(fetcher out.PageFetcher, classifier out.TextClassifier) *filtering.Factory {
	f := filtering.NewFactory()
	f.Register(domain.FiltererShippingPolicy, func(deps filtering.Dependencies) (filtering.Filterer, error) {
		return shipping.NewEngine(deps.Settings, fetcher, classifier, nil, deps.Logger)
	})
	return f
}

// Master returns the cascade, for callers that only want a verdict per url.
func (r *Runner) Master() *filtering.MasterFilterer { return r.master }

// Registry returns the shared registry.
func (r *Runner) Registry() *registry.Registry { return r.registry }

// WithUser returns a runner that records its runs under user. The copy
// shares the cascade, the engine and the registry with r.
func (r *Runner) WithUser(user string) *Runner {
	if user == "" || user == r.user {
		return r
	}
	cp := *r
	cp.user = user
	return &cp
}

// SaveEnabled reports whether classified domains are persisted to the
// registry store.
func (r *Runner) SaveEnabled() bool { return r.settings.SaveNewClassifiedDomains }

// Country returns the lower-case country code the runner filters for.
func (r *Runner) Country() string { return r.settings.Country }

// NewInput wraps raw urls into a fresh envelope.
func (r *Runner) NewInput(keyword string, urls []string) *domain.PipelineResult {
	results := make([]domain.Result, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			results = append(results, domain.Result{URL: u})
		}
	}
	return domain.NewPipelineResult(keyword, strings.ToUpper(r.settings.Country), results, time.Now())
}

// Run applies the named steps in order to input.
func (r *Runner) Run(ctx context.Context, input *domain.PipelineResult, stepKeys []string) (*domain.PipelineResult, *domain.RunRecord, error) {
	if len(stepKeys) == 0 {
		stepKeys = DefaultSteps
	}

	run := NewRun(input.Meta, r.user, r.sink, r.log)
	steps, err := r.steps(run, stepKeys)
	if err != nil {
		return nil, nil, err
	}

	record := &domain.RunRecord{
		UUID:       input.Meta.UUID,
		Keyword:    input.Meta.Keyword,
		Country:    input.Meta.Country,
		User:       r.user,
		Steps:      stepKeys,
		Status:     domain.RunStatusRunning,
		NumResults: len(input.Results),
		OutputDir:  run.Dir,
		StartedAt:  time.Now().UTC(),
	}
	r.record(ctx, record)

	log := r.log.With().Str("run", input.Meta.UUID).Logger()
	log.Info().
		Str("keyword", input.Meta.Keyword).
		Int("results", len(input.Results)).
		Strs("steps", stepKeys).
		Msg("pipeline run started")

	result := input
	for i, step := range steps {
		log.Info().Int("step", i+1).Str("name", step.Name()).Msg("executing step")
		next, err := step.ApplyStep(ctx, result)
		if err != nil {
			record.Status = domain.RunStatusFailed
			r.finish(ctx, record, result)
			return nil, record, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}
		result = next
	}

	record.Status = run.Status()
	r.finish(ctx, record, result)

	log.Info().
		Str("status", record.Status).
		Int("kept", record.NumKept).
		Msg("pipeline run finished")
	return result, record, nil
}

func (r *Runner) steps(run *Run, keys []string) ([]Step, error) {
	steps := make([]Step, 0, len(keys))
	for _, k := range keys {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case StepKeyCountry:
			steps = append(steps, NewCountryFilterer(r.master, run, r.log))
		case StepKeyDelivery:
			steps = append(steps, NewDeliveryPolicyExtractor(r.engine, run, r.log))
		default:
			return nil, apperr.ConfigError(fmt.Sprintf("unknown step: %s", k)).
				WithDetail("known", DefaultSteps)
		}
	}
	return steps, nil
}

func (r *Runner) finish(ctx context.Context, record *domain.RunRecord, result *domain.PipelineResult) {
	now := time.Now().UTC()
	record.FinishedAt = &now
	record.Usage = result.Usage
	record.NumKept = 0
	for i := range result.Results {
		if result.Results[i].Verdict() == domain.VerdictPositive {
			record.NumKept++
		}
	}
	r.record(ctx, record)
}

func (r *Runner) record(ctx context.Context, record *domain.RunRecord) {
	if r.runs == nil {
		return
	}
	if err := r.runs.Record(ctx, record); err != nil {
		r.log.Warn().Err(err).Str("run", record.UUID).Msg("failed to record run")
	}
}
