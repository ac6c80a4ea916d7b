package shipping

import (
	"context"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/filtering"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/rs/zerolog"
)

// Justifications of the terminal states.
const (
	JustifFetchFailed  = "fetch failed for the page"
	JustifEmptyContent = "content extracted but empty"
	JustifNoLinks      = "No links extracted"
	JustifNoCandidates = "no shipping policy page found with keywords model"
	JustifNotClear     = "LLM response: not_clear"
	JustifAllFailed    = "fetch and/or LLM calls failed for all shipping policy pages found"
)

// DefaultMaxWorkers is the worker count used when concurrency is on and none is configured.
const DefaultMaxWorkers = 50

// =============================================================================
// Engine
// =============================================================================
//
// Per page:
//   hand override → fetch product page → footer links → keyword candidates
//   → for each candidate: fetch → visible text → llm → yes/no stops the loop
// Everything that cannot be decided ends UNKNOWN with a justification.

// Engine is the shipping-policy filterer.
type Engine struct {
	country    string
	fetcher    out.PageFetcher
	classifier out.TextClassifier
	registry   *registry.Registry
	normalizer *Normalizer
	keywords   []string
	overrides  map[string]domain.Verdict
	prompt     string
	fetchOpts  out.FetchOptions
	modelCfg   out.ModelConfig
	concurrent bool
	workers    int
	maxCands   int
	save       bool
	usage      *Usage
	log        zerolog.Logger
}

var _ filtering.Filterer = (*Engine)(nil)

// NewEngine builds the engine for one country. reg may be nil, in which case
// nothing is written back.
func NewEngine(settings *domain.CountrySettings, fetcher out.PageFetcher, classifier out.TextClassifier, reg *registry.Registry, log zerolog.Logger) (*Engine, error) {
	if settings == nil {
		return nil, apperr.ConfigError("country settings are required")
	}
	if fetcher == nil {
		return nil, apperr.ConfigError("shipping_policy filterer needs a page fetcher")
	}
	if classifier == nil {
		return nil, apperr.ConfigError("shipping_policy filterer needs a text classifier")
	}
	sh := settings.Shipping
	if len(sh.Keywords) == 0 {
		return nil, apperr.ConfigError("shipping keywords are required")
	}
	if strings.TrimSpace(sh.PromptTemplate) == "" {
		return nil, apperr.ConfigError("shipping prompt_template is required")
	}

	workers := sh.MaxWorkers
	if workers <= 0 || workers > DefaultMaxWorkers {
		workers = DefaultMaxWorkers
	}

	return &Engine{
		country:    strings.ToLower(settings.Country),
		fetcher:    fetcher,
		classifier: classifier,
		registry:   reg,
		normalizer: NewNormalizer(),
		keywords:   lowerAll(sh.Keywords),
		overrides:  overrideMap(sh),
		prompt:     RenderPrompt(sh.PromptTemplate, settings.Country, settings.CountryLong),
		fetchOpts: out.FetchOptions{
			Geolocation: sh.Fetch.Geolocation,
			RenderJS:    sh.Fetch.RenderJS,
		},
		modelCfg: out.ModelConfig{
			Model:       sh.LLM.Model,
			Temperature: sh.LLM.Temperature,
			MaxTokens:   sh.LLM.MaxTokens,
			JSONMode:    true,
		},
		concurrent: sh.UseConcurrency,
		workers:    workers,
		maxCands:   sh.MaxCandidates,
		save:       settings.SaveNewClassifiedDomains,
		usage:      NewUsage(),
		log:        log.With().Str("filterer", domain.FiltererShippingPolicy).Logger(),
	}, nil
}

// RenderPrompt fills {country} and {country_long} in the template.
func RenderPrompt(template, country, countryLong string) string {
	return strings.NewReplacer(
		"{country_long}", countryLong,
		"{country}", strings.ToLower(country),
	).Replace(template)
}

func (e *Engine) Name() string { return domain.FiltererShippingPolicy }

// Usage returns the calls made through FilterPage so far.
func (e *Engine) Usage() map[string]int { return e.usage.Snapshot() }

// FilterPage runs the state machine on one page. It always decides, so in a
// cascade it is the last filterer that gets a say.
func (e *Engine) FilterPage(ctx context.Context, page *domain.Page) (*domain.Decision, error) {
	if page.Domain == "" {
		page.Domain = filtering.DomainOf(page.URL)
	}
	return e.decide(ctx, page, e.usage), nil
}

func (e *Engine) decide(ctx context.Context, page *domain.Page, usage *Usage) *domain.Decision {
	log := e.log.With().Str("url", page.URL).Str("domain", page.Domain).Logger()

	if v, ok := e.overrides[page.Domain]; ok {
		log.Info().Str("verdict", v.String()).Msg("domain labeled by hand")
		return &domain.Decision{Verdict: v, LabelJustif: "Domain labeled by hand as " + v.String()}
	}

	html, err := e.fetch(ctx, page.URL, usage)
	if err != nil {
		log.Info().Err(err).Msg("product page fetch failed")
		return unknown(JustifFetchFailed, nil)
	}
	if strings.TrimSpace(html) == "" {
		log.Info().Msg("product page extracted but empty")
		return unknown(JustifEmptyContent, nil)
	}

	links, err := ExtractLinks(html, page.Domain)
	if err != nil || len(links) == 0 {
		log.Info().Err(err).Msg("no links extracted")
		return unknown(JustifNoLinks, nil)
	}

	candidates := Candidates(links, e.normalizer, e.keywords)
	if len(candidates) == 0 {
		log.Info().Int("links", len(links)).Msg("no shipping policy page found")
		return unknown(JustifNoCandidates, nil)
	}
	if e.maxCands > 0 && len(candidates) > e.maxCands {
		candidates = candidates[:e.maxCands]
	}
	if len(candidates) > 1 {
		log.Debug().Strs("candidates", candidates).Msg("multiple shipping policy pages found")
	}

	analysis := make(map[string]any, len(candidates))
	notClear := false
	for _, candidate := range candidates {
		outcome := e.checkCandidate(ctx, candidate, usage)
		analysis[candidate] = outcome.Diagnostic()

		log.Debug().
			Str("candidate", candidate).
			Str("outcome", outcome.Kind.String()).
			Str("reason", outcome.Reason).
			Msg("shipping policy page checked")

		switch outcome.Kind {
		case OutcomeOK:
			return &domain.Decision{
				Verdict:     outcome.Verdict,
				LabelJustif: outcome.Answer.Justification,
				Analysis:    analysis,
				KeptURL:     candidate,
			}
		case OutcomeSkip:
			notClear = notClear || outcome.NotClear()
		}
	}

	if notClear {
		return unknown(JustifNotClear, analysis)
	}
	return unknown(JustifAllFailed, analysis)
}

// checkCandidate fetches one shipping-policy page and asks the model about it.
func (e *Engine) checkCandidate(ctx context.Context, candidateURL string, usage *Usage) CandidateOutcome {
	html, err := e.fetch(ctx, candidateURL, usage)
	if err != nil {
		return retryable(DiagFetchFailed)
	}
	if strings.TrimSpace(html) == "" {
		return skip(DiagEmptyContent, nil)
	}
	// a page with markup but no visible text is still put to the model
	text, err := VisibleText(html)
	if err != nil {
		e.log.Debug().Err(err).Str("candidate", candidateURL).Msg("failed to extract page text")
	}

	usage.Add(UsageLLMCalls, 1)
	completion, err := e.classifier.ClassifyText(ctx, e.prompt+text, e.modelCfg)
	if err != nil {
		e.log.Debug().Err(err).Str("candidate", candidateURL).Msg("llm call failed")
		return retryable(DiagLLMFailed)
	}
	usage.Add(UsageLLMPromptTokens, completion.PromptTokens)
	usage.Add(UsageLLMCompletionTokens, completion.CompletionTokens)

	answer, err := ParseAnswer(completion.Content, e.country)
	if err != nil {
		e.log.Info().Err(err).Str("candidate", candidateURL).Msg("unexpected response format from llm")
		return skip(DiagUnexpectedShape, nil)
	}

	switch answer.Value {
	case AnswerYes:
		return decided(domain.VerdictPositive, answer)
	case AnswerNo:
		return decided(domain.VerdictNegative, answer)
	case AnswerNotClear:
		return skip(AnswerNotClear, answer)
	default:
		return skip(DiagUnexpectedValue, answer)
	}
}

func (e *Engine) fetch(ctx context.Context, rawURL string, usage *Usage) (string, error) {
	usage.Add(UsageFetchCalls, 1)
	res, err := e.fetcher.FetchPage(ctx, rawURL, e.fetchOpts)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

func unknown(justif string, analysis map[string]any) *domain.Decision {
	return &domain.Decision{
		Verdict:     domain.VerdictUnknown,
		LabelJustif: justif,
		Analysis:    analysis,
	}
}

func overrideMap(sh domain.ShippingSettings) map[string]domain.Verdict {
	m := make(map[string]domain.Verdict)
	// positive wins over unknown over negative, like the registry lookup
	for _, l := range []struct {
		domains []string
		v       domain.Verdict
	}{
		{sh.DomainsNeg, domain.VerdictNegative},
		{sh.DomainsUnknown, domain.VerdictUnknown},
		{sh.DomainsPos, domain.VerdictPositive},
	} {
		for _, d := range l.domains {
			m[strings.ToLower(strings.TrimSpace(d))] = l.v
		}
	}
	return m
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
