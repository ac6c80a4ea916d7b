package shipping

import (
	"context"
	"fmt"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/filtering"

	"github.com/go-pkgz/pool"
)

// =============================================================================
// Batch
// =============================================================================

// BatchResult summarizes one PerformFiltering call.
type BatchResult struct {
	Processed int
	Skipped   int
	Usage     map[string]int
}

// pageWorker implements pool.Worker for pages.
type pageWorker struct {
	engine *Engine
	usage  *Usage
}

// Do implements pool.Worker interface.
func (w *pageWorker) Do(ctx context.Context, page *domain.Page) error {
	w.engine.resolve(ctx, page, w.usage)
	return nil
}

// PerformFiltering runs the engine over every page still tagged "unknown".
// Pages are updated in place, so the slice keeps its order whether the pages
// ran sequentially or on the worker pool. Resolved pages are added to the
// registry as they finish; the registry is saved at the end when configured,
// and only that save can fail the batch.
func (e *Engine) PerformFiltering(ctx context.Context, pages []*domain.Page) (*BatchResult, error) {
	todo := make([]*domain.Page, 0, len(pages))
	for _, p := range pages {
		if p.FiltererName != "" && p.FiltererName != domain.FiltererUnknown {
			continue
		}
		todo = append(todo, p)
	}

	usage := NewUsage()
	res := &BatchResult{Processed: len(todo), Skipped: len(pages) - len(todo)}

	if e.concurrent && len(todo) > 1 {
		if err := e.runPool(ctx, todo, usage); err != nil {
			return nil, err
		}
	} else {
		for _, p := range todo {
			e.resolve(ctx, p, usage)
		}
	}
	res.Usage = usage.Snapshot()

	counts := map[domain.Verdict]int{}
	for _, p := range todo {
		counts[p.Verdict]++
	}
	e.log.Info().
		Int("pages", len(pages)).
		Int("processed", res.Processed).
		Int("positive", counts[domain.VerdictPositive]).
		Int("negative", counts[domain.VerdictNegative]).
		Int("unknown", counts[domain.VerdictUnknown]).
		Bool("concurrent", e.concurrent).
		Msg("shipping policy filtering done")

	if e.registry != nil && e.save && res.Processed > 0 {
		if err := e.registry.Save(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (e *Engine) runPool(ctx context.Context, pages []*domain.Page, usage *Usage) error {
	workers := min(e.workers, len(pages))
	p := pool.New[*domain.Page](workers, &pageWorker{engine: e, usage: usage}).
		WithContinueOnError()

	if err := p.Go(ctx); err != nil {
		return fmt.Errorf("failed to start shipping workers: %w", err)
	}
	for _, page := range pages {
		p.Submit(page)
	}
	if err := p.Close(ctx); err != nil {
		return fmt.Errorf("shipping workers failed: %w", err)
	}
	return nil
}

// resolve decides one page and records it in the registry.
func (e *Engine) resolve(ctx context.Context, page *domain.Page, usage *Usage) {
	if page.Domain == "" {
		page.Domain = filtering.DomainOf(page.URL)
	}
	page.Apply(domain.FiltererShippingPolicy, e.decide(ctx, page, usage))

	if e.registry == nil || page.Domain == "" {
		return
	}
	if err := e.registry.Add(page.Domain, page.Verdict, page.Entry()); err != nil {
		e.log.Warn().Err(err).
			Str("domain", page.Domain).
			Msg("failed to add domain to registry")
	}
}
