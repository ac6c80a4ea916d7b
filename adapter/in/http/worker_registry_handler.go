package http

import (
	"slices"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultRegistryPageSize = 100
	maxRegistryPageSize     = 1000
)

// RegistryHandler exposes the known-domain registry read-only.
type RegistryHandler struct {
	runners Runners
}

func NewRegistryHandler(runners Runners) *RegistryHandler {
	return &RegistryHandler{runners: runners}
}

func (h *RegistryHandler) Register(router fiber.Router) {
	validCountry := middleware.ValidateEnum("country", h.runners.Countries())
	router.Get("/registry/:country", validCountry, h.List)
	router.Get("/registry/:country/:domain", validCountry, h.Get)
}

// DomainView is one registry entry as served by the API.
type DomainView struct {
	Domain  string               `json:"domain"`
	Verdict string               `json:"verdict"`
	Entry   domain.RegistryEntry `json:"entry"`
}

// List serves GET /registry/:country?verdict=&page=&page_size=
func (h *RegistryHandler) List(c *fiber.Ctx) error {
	runner, err := h.runners.Runner(c.UserContext(), c.Params("country"))
	if err != nil {
		return err
	}

	var filter *domain.Verdict
	if q := c.Query("verdict"); q != "" {
		v, ok := parseVerdict(q)
		if !ok {
			return apperr.InvalidInput("verdict", "expected positive, unknown or negative")
		}
		filter = &v
	}

	buckets := runner.Registry().Snapshot()
	views := make([]DomainView, 0, buckets.Len())
	buckets.Each(func(d string, v domain.Verdict, e domain.RegistryEntry) {
		if filter != nil && v != *filter {
			return
		}
		views = append(views, DomainView{Domain: d, Verdict: v.String(), Entry: e})
	})
	slices.SortFunc(views, func(a, b DomainView) int { return strings.Compare(a.Domain, b.Domain) })

	start, end, meta := response.GetPagination(c, defaultRegistryPageSize, maxRegistryPageSize).Window(len(views))
	return response.OKWithMeta(c, views[start:end], meta)
}

// Get serves GET /registry/:country/:domain
func (h *RegistryHandler) Get(c *fiber.Ctx) error {
	runner, err := h.runners.Runner(c.UserContext(), c.Params("country"))
	if err != nil {
		return err
	}

	name := strings.ToLower(strings.TrimSpace(c.Params("domain")))
	if name == "" {
		return apperr.MissingField("domain")
	}

	entry, verdict, ok := runner.Registry().Lookup(name)
	if !ok {
		return apperr.NotFound("domain")
	}
	return response.OK(c, DomainView{Domain: name, Verdict: verdict.String(), Entry: entry})
}
