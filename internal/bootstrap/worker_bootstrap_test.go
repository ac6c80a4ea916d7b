package bootstrap

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadInput(t *testing.T) {
	t.Run("url list", func(t *testing.T) {
		path := writeFile(t, "urls.json", `  ["https://shop.ch/a", "https://shop.at/b"]`)
		urls, snapshot, err := LoadInput(path)
		require.NoError(t, err)
		assert.Nil(t, snapshot)
		assert.Equal(t, []string{"https://shop.ch/a", "https://shop.at/b"}, urls)
	})

	t.Run("snapshot", func(t *testing.T) {
		path := writeFile(t, "step.json", `{
			"meta": {"keyword": "aspirin", "country": "CH", "uuid": "abc", "numberOfResults": 2},
			"results": [{"url": "https://shop.ch/a"}, {"url": "https://shop.ch/b"}]
		}`)
		urls, snapshot, err := LoadInput(path)
		require.NoError(t, err)
		assert.Nil(t, urls)
		require.NotNil(t, snapshot)
		assert.Equal(t, "aspirin", snapshot.Meta.Keyword)
		assert.Len(t, snapshot.Results, 2)
		assert.Equal(t, 1, snapshot.Results[1].Index)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"empty list", `[]`},
		{"not strings", `[1, 2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadInput(writeFile(t, "in.json", tt.content))
			require.Error(t, err)
			assert.Equal(t, apperr.CodeInvalidInput, apperr.AsAppError(err).Code)
		})
	}

	t.Run("missing path", func(t *testing.T) {
		_, _, err := LoadInput("")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeMissingField, apperr.AsAppError(err).Code)
	})
}

func TestDevToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "dev-secret", User: "local"}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	RegisterDevRoutes(app, cfg)
	app.Get("/whoami", middleware.JWTAuth(middleware.AuthConfig{Secret: cfg.JWTSecret}), func(c *fiber.Ctx) error {
		return c.SendString(middleware.Subject(c))
	})

	token, err := IssueToken(cfg.JWTSecret, "ops@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/dev/token?sub=someone", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	expired, err := IssueToken(cfg.JWTSecret, "ops@example.com", -time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+expired)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestBatch_UnknownCountry(t *testing.T) {
	b := &Batch{deps: &Dependencies{Config: &config.Config{Country: "XX"}}}
	_, _, err := b.Run(t.Context(), BatchOptions{Input: "unused.json"})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfigError, apperr.AsAppError(err).Code)
}
