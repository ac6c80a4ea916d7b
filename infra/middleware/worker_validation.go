package middleware

import (
	"strings"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ValidateEnum rejects requests whose route parameter is not one of allowed.
// The comparison ignores case.
func ValidateEnum(paramName string, allowedValues []string) fiber.Handler {
	allowed := make(map[string]bool, len(allowedValues))
	for _, v := range allowedValues {
		allowed[strings.ToLower(v)] = true
	}

	return func(c *fiber.Ctx) error {
		value := c.Params(paramName)
		if value != "" && !allowed[strings.ToLower(value)] {
			return apperr.InvalidInput(paramName, "unsupported value "+value).
				WithDetail("allowed", allowedValues)
		}
		return c.Next()
	}
}

// PreventPathTraversal rejects paths that try to leave the route tree.
// Registry lookups use the domain as a path segment.
func PreventPathTraversal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.Contains(path, "..") || strings.Contains(path, "%2e%2e") || strings.Contains(path, "%2E%2E") {
			return apperr.BadRequest("invalid path")
		}
		return c.Next()
	}
}
