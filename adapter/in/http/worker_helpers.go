package http

import (
	"context"
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// Runners hands out the pipeline runner of a country.
type Runners interface {
	Countries() []string
	Runner(ctx context.Context, country string) (*pipeline.Runner, error)
}

// parseBody decodes the JSON body into v.
func parseBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return apperr.BadRequest("request body is required")
	}
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return nil
}

// cleanURLs trims the urls and drops empty ones, keeping order.
func cleanURLs(urls []string, max int) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil, apperr.MissingField("urls")
	}
	if max > 0 && len(out) > max {
		return nil, apperr.InvalidInput("urls", "too many urls").
			WithDetail("max", max)
	}
	return out, nil
}

// parseVerdict accepts the verdict names and their numeric forms.
func parseVerdict(s string) (domain.Verdict, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "1":
		return domain.VerdictPositive, true
	case "unknown", "unknwn", "0":
		return domain.VerdictUnknown, true
	case "negative", "neg", "-1":
		return domain.VerdictNegative, true
	default:
		return domain.VerdictUnknown, false
	}
}
