package http

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxFilterURLs = 1000
	maxRunURLs    = 5000
	maxRunsListed = 100
)

// PipelineHandler triggers cascades and pipeline runs.
type PipelineHandler struct {
	runners Runners
	runs    out.RunRepository
	log     zerolog.Logger
}

// NewPipelineHandler wires the handler. runs may be nil, in which case the
// run history endpoints answer 404.
func NewPipelineHandler(runners Runners, runs out.RunRepository, log zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		runners: runners,
		runs:    runs,
		log:     log.With().Str("component", "pipeline_handler").Logger(),
	}
}

func (h *PipelineHandler) Register(router fiber.Router) {
	router.Post("/filter", h.Filter)
	router.Post("/runs", h.StartRun)
	router.Get("/runs", h.ListRuns)
	router.Get("/runs/:uuid", h.GetRun)
}

// =============================================================================
// Filter
// =============================================================================

type FilterRequest struct {
	Country string   `json:"country"`
	URLs    []string `json:"urls"`
}

type FilterVerdict struct {
	URL          string `json:"url"`
	Domain       string `json:"domain"`
	Verdict      string `json:"verdict"`
	Result       int    `json:"result"`
	FiltererName string `json:"filterer_name"`
}

// Filter runs the country cascade on the posted urls. Nothing is persisted:
// no snapshot is written and the registry is not saved.
func (h *PipelineHandler) Filter(c *fiber.Ctx) error {
	var req FilterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	urls, err := cleanURLs(req.URLs, maxFilterURLs)
	if err != nil {
		return err
	}
	runner, err := h.runners.Runner(c.UserContext(), req.Country)
	if err != nil {
		return err
	}

	master := runner.Master()
	verdicts := make([]FilterVerdict, 0, len(urls))
	for _, u := range urls {
		page := &domain.Page{URL: u}
		master.Evaluate(c.UserContext(), page)
		verdicts = append(verdicts, FilterVerdict{
			URL:          u,
			Domain:       page.Domain,
			Verdict:      page.Verdict.String(),
			Result:       int(page.Verdict),
			FiltererName: page.FiltererName,
		})
	}
	return response.OK(c, verdicts)
}

// =============================================================================
// Runs
// =============================================================================

type RunRequest struct {
	Country string   `json:"country"`
	Keyword string   `json:"keyword"`
	URLs    []string `json:"urls"`
	Steps   []string `json:"steps,omitempty"`
}

type RunView struct {
	UUID       string         `json:"uuid"`
	Keyword    string         `json:"keyword"`
	Country    string         `json:"country"`
	User       string         `json:"user"`
	Steps      []string       `json:"steps"`
	Status     string         `json:"status"`
	NumResults int            `json:"num_results"`
	NumKept    int            `json:"num_kept"`
	Usage      map[string]int `json:"usage,omitempty"`
	OutputDir  string         `json:"output_dir,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

func newRunView(r *domain.RunRecord) RunView {
	return RunView{
		UUID:       r.UUID,
		Keyword:    r.Keyword,
		Country:    r.Country,
		User:       r.User,
		Steps:      r.Steps,
		Status:     r.Status,
		NumResults: r.NumResults,
		NumKept:    r.NumKept,
		Usage:      r.Usage,
		OutputDir:  r.OutputDir,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

type RunResponse struct {
	Run    RunView                `json:"run"`
	Result *domain.PipelineResult `json:"result"`
}

// StartRun runs the requested steps (country filtering and the delivery
// policy extractor by default) over the posted urls and waits for the result.
func (h *PipelineHandler) StartRun(c *fiber.Ctx) error {
	var req RunRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		return apperr.MissingField("keyword")
	}
	urls, err := cleanURLs(req.URLs, maxRunURLs)
	if err != nil {
		return err
	}
	runner, err := h.runners.Runner(c.UserContext(), req.Country)
	if err != nil {
		return err
	}
	runner = runner.WithUser(middleware.Subject(c))

	input := runner.NewInput(req.Keyword, urls)
	// concurrent api runs of one keyword must not share an id or output dir
	input.Meta.Distinguish(runNonce())
	result, record, err := runner.Run(c.UserContext(), input, req.Steps)
	if err != nil {
		if record == nil {
			// nothing ran: the step list was rejected
			if errors.Is(err, apperr.ErrConfig) {
				return apperr.InvalidInput("steps", apperr.AsAppError(err).Message)
			}
			return err
		}
		h.log.Error().Err(err).Str("run", record.UUID).Msg("pipeline run failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.Timeout("pipeline run").WithDetail("run", record.UUID)
		}
		return apperr.AsAppError(err).WithDetail("run", record.UUID)
	}

	return response.Created(c, RunResponse{Run: newRunView(record), Result: result})
}

// ListRuns serves GET /runs?country=&limit=
func (h *PipelineHandler) ListRuns(c *fiber.Ctx) error {
	if h.runs == nil {
		return apperr.NotFound("run history")
	}
	country := strings.ToUpper(strings.TrimSpace(c.Query("country")))
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > maxRunsListed {
		return apperr.InvalidInput("limit", "must be between 1 and 100")
	}

	records, err := h.runs.ListRecent(c.UserContext(), country, limit)
	if err != nil {
		return err
	}
	views := make([]RunView, len(records))
	for i, r := range records {
		views[i] = newRunView(r)
	}
	return response.OK(c, views)
}

// GetRun serves GET /runs/:uuid
func (h *PipelineHandler) GetRun(c *fiber.Ctx) error {
	if h.runs == nil {
		return apperr.NotFound("run history")
	}
	record, err := h.runs.Get(c.UserContext(), c.Params("uuid"))
	if err != nil {
		return err
	}
	return response.OK(c, newRunView(record))
}

var _ Runners = (*pipeline.Pool)(nil)

func runNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
