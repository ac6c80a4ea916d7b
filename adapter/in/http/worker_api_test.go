package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/config"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/pipeline"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/service/registry"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/infra/middleware"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type noFetcher struct{}

func (noFetcher) FetchPage(context.Context, string, out.FetchOptions) (*out.PageResult, error) {
	return nil, errors.New("offline")
}

type noClassifier struct{}

func (noClassifier) ClassifyText(context.Context, string, out.ModelConfig) (*out.Completion, error) {
	return nil, errors.New("offline")
}

type memRuns struct {
	mu      sync.Mutex
	records map[string]domain.RunRecord
	order   []string
}

func (r *memRuns) Record(_ context.Context, run *domain.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.records == nil {
		r.records = map[string]domain.RunRecord{}
	}
	if _, ok := r.records[run.UUID]; !ok {
		r.order = append(r.order, run.UUID)
	}
	r.records[run.UUID] = *run
	return nil
}

func (r *memRuns) Get(_ context.Context, uuid string) (*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[uuid]
	if !ok {
		return nil, apperr.NotFound("run")
	}
	return &rec, nil
}

func (r *memRuns) ListRecent(_ context.Context, _ string, limit int) ([]*domain.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*domain.RunRecord
	for i := len(r.order) - 1; i >= 0 && len(list) < limit; i-- {
		rec := r.records[r.order[i]]
		list = append(list, &rec)
	}
	return list, nil
}

type testAPI struct {
	app  *fiber.App
	pool *pipeline.Pool
	runs *memRuns
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	runs := &memRuns{}
	pool := pipeline.NewPool([]string{"CH", "AT"}, func(_ context.Context, country string) (*pipeline.Runner, error) {
		s, err := config.LoadCountrySettings(country, "")
		if err != nil {
			return nil, err
		}
		reg := registry.New(s.Country, nil, registry.Options{Logger: zerolog.Nop()})
		if err := reg.Add("shop.de", domain.VerdictNegative, domain.RegistryEntry{FiltererName: domain.FiltererShippingPolicy}); err != nil {
			return nil, err
		}
		return pipeline.NewRunner(pipeline.RunnerDeps{
			Settings:   s,
			Registry:   reg,
			Fetcher:    noFetcher{},
			Classifier: noClassifier{},
			Runs:       runs,
			User:       "cli",
			Logger:     zerolog.Nop(),
		})
	})

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())
	NewHealthHandler(map[string]HealthChecker{
		"redis":    nil,
		"postgres": PingFunc(func(context.Context) error { return nil }),
	}).Register(app)

	api := app.Group("/api/v1", middleware.JWTAuth(middleware.AuthConfig{Secret: testSecret}))
	NewAuthHandler(nil).Register(api)
	NewRegistryHandler(pool).Register(api)
	NewPipelineHandler(pool, runs, zerolog.Nop()).Register(api)

	return &testAPI{app: app, pool: pool, runs: runs}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validToken(t *testing.T) string {
	return signToken(t, testSecret, jwt.MapClaims{
		"sub": "ops@example.com",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
	} `json:"meta"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(t, fiber.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	req := httptest.NewRequest(fiber.MethodGet, "/ready", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "not configured", body.Checks["redis"])
	assert.Equal(t, "healthy", body.Checks["postgres"])
}

func TestReady_Unhealthy(t *testing.T) {
	app := fiber.New()
	NewHealthHandler(map[string]HealthChecker{
		"mongodb": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}).Register(app)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantErr  string
	}{
		{name: "missing token", token: "", wantCode: 401, wantErr: apperr.CodeUnauthorized},
		{name: "wrong secret", token: signToken(t, "other", jwt.MapClaims{"sub": "x"}), wantCode: 401, wantErr: apperr.CodeInvalidToken},
		{
			name:     "expired",
			token:    signToken(t, testSecret, jwt.MapClaims{"sub": "x", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantCode: 401,
			wantErr:  apperr.CodeTokenExpired,
		},
		{name: "no subject", token: signToken(t, testSecret, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}), wantCode: 401, wantErr: apperr.CodeUnauthorized},
		{name: "valid", token: validToken(t), wantCode: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(t, fiber.MethodGet, "/api/v1/registry/ch", tt.token, nil)
			assert.Equal(t, tt.wantCode, status)
			if tt.wantErr != "" {
				assert.False(t, env.Success)
				assert.Equal(t, tt.wantErr, env.Error.Code)
			}
		})
	}
}

func TestRegistryHandler(t *testing.T) {
	api := newTestAPI(t)
	token := validToken(t)

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantTotal int
	}{
		{name: "list", path: "/api/v1/registry/CH", wantCode: 200, wantTotal: 1},
		{name: "list filtered by verdict", path: "/api/v1/registry/ch?verdict=positive", wantCode: 200, wantTotal: 0},
		{name: "bad verdict", path: "/api/v1/registry/ch?verdict=maybe", wantCode: 400},
		{name: "unsupported country", path: "/api/v1/registry/fr", wantCode: 400},
		{name: "known domain", path: "/api/v1/registry/ch/shop.de", wantCode: 200},
		{name: "unknown domain", path: "/api/v1/registry/ch/shop.fr", wantCode: 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(t, fiber.MethodGet, tt.path, token, nil)
			require.Equal(t, tt.wantCode, status)
			if status == 200 && tt.name != "known domain" {
				assert.Equal(t, tt.wantTotal, env.Meta.Total)
			}
		})
	}

	_, env := api.do(t, fiber.MethodGet, "/api/v1/registry/ch/shop.de", token, nil)
	var view DomainView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "negative", view.Verdict)
	assert.Equal(t, domain.FiltererShippingPolicy, view.Entry.FiltererName)
}

func TestPipelineHandler_Filter(t *testing.T) {
	api := newTestAPI(t)
	token := validToken(t)

	status, env := api.do(t, fiber.MethodPost, "/api/v1/filter", token, FilterRequest{
		Country: "ch",
		URLs:    []string{"https://shop.ch/p/1", " https://shop.de/p/2 ", "https://other.com/x", ""},
	})
	require.Equal(t, fiber.StatusOK, status)

	var verdicts []FilterVerdict
	require.NoError(t, json.Unmarshal(env.Data, &verdicts))
	require.Len(t, verdicts, 3)

	tests := []struct {
		filterer string
		verdict  string
		result   int
	}{
		{domain.FiltererURL, "positive", 1},
		{domain.FiltererKnownDomains, "negative", -1},
		{domain.FiltererUnknown, "unknown", 0},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.filterer, verdicts[i].FiltererName, verdicts[i].URL)
		assert.Equal(t, tt.verdict, verdicts[i].Verdict)
		assert.Equal(t, tt.result, verdicts[i].Result)
	}

	runner, err := api.pool.Runner(context.Background(), "CH")
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Registry().Len(), "filtering does not write to the registry")
}

func TestPipelineHandler_FilterValidation(t *testing.T) {
	api := newTestAPI(t)
	token := validToken(t)

	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{name: "no urls", body: FilterRequest{Country: "CH"}, wantErr: apperr.CodeMissingField},
		{name: "unknown country", body: FilterRequest{Country: "FR", URLs: []string{"https://a.fr"}}, wantErr: apperr.CodeInvalidInput},
		{name: "empty body", body: nil, wantErr: apperr.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.do(t, fiber.MethodPost, "/api/v1/filter", token, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, tt.wantErr, env.Error.Code)
		})
	}
}

func TestPipelineHandler_Runs(t *testing.T) {
	api := newTestAPI(t)
	token := validToken(t)

	status, env := api.do(t, fiber.MethodPost, "/api/v1/runs", token, RunRequest{
		Country: "CH",
		Keyword: "aspirin",
		URLs:    []string{"https://shop.ch/p/1", "https://shop.de/p/2"},
		Steps:   []string{pipeline.StepKeyCountry},
	})
	require.Equal(t, fiber.StatusCreated, status)

	var run RunResponse
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "ops@example.com", run.Run.User)
	assert.Equal(t, "CH", run.Run.Country)
	assert.Equal(t, domain.StepSucceeded(pipeline.StepCountryFilterer), run.Run.Status)
	assert.Equal(t, 1, run.Run.NumKept)
	require.NotNil(t, run.Result)
	require.Len(t, run.Result.Results, 2)
	assert.Equal(t, domain.FiltererURL, run.Result.Results[0].FiltererName)

	status, env = api.do(t, fiber.MethodGet, "/api/v1/runs?limit=5", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	var listed []RunView
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, run.Run.UUID, listed[0].UUID)

	status, _ = api.do(t, fiber.MethodGet, "/api/v1/runs/"+run.Run.UUID, token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = api.do(t, fiber.MethodGet, "/api/v1/runs/missing", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperr.CodeNotFound, env.Error.Code)
}

func TestPipelineHandler_SameSecondRunsStayApart(t *testing.T) {
	api := newTestAPI(t)
	token := validToken(t)

	req := RunRequest{
		Country: "CH",
		Keyword: "aspirin",
		URLs:    []string{"https://shop.ch/p/1"},
		Steps:   []string{pipeline.StepKeyCountry},
	}
	seen := map[string]bool{}
	dirs := map[string]bool{}
	for i := 0; i < 3; i++ {
		status, env := api.do(t, fiber.MethodPost, "/api/v1/runs", token, req)
		require.Equal(t, fiber.StatusCreated, status)

		var run RunResponse
		require.NoError(t, json.Unmarshal(env.Data, &run))
		seen[run.Run.UUID] = true
		dirs[run.Run.OutputDir] = true
		assert.NotEmpty(t, run.Result.Meta.Nonce)
		assert.Equal(t, run.Run.UUID, run.Result.Meta.UUID)
	}
	assert.Len(t, seen, 3)
	assert.Len(t, dirs, 3)
}

func TestPipelineHandler_RunUnknownStep(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(t, fiber.MethodPost, "/api/v1/runs", validToken(t), RunRequest{
		Country: "AT",
		Keyword: "aspirin",
		URLs:    []string{"https://shop.at/p/1"},
		Steps:   []string{"translate"},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeInvalidInput, env.Error.Code)
}

func TestMetricsHandler(t *testing.T) {
	latency := metrics.NewLatencyRegistry(10)
	latency.Record(metrics.CapabilityFetch, 20*time.Millisecond, nil)
	latency.Record(metrics.CapabilityFetch, 40*time.Millisecond, errors.New("timeout"))

	app := fiber.New()
	NewMetricsHandler(latency, metrics.NewPoolMonitor()).Register(app)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			Latency map[string]map[string]any `json:"latency"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Data.Latency, metrics.CapabilityFetch)
	assert.EqualValues(t, 2, body.Data.Latency[metrics.CapabilityFetch]["calls"])
	assert.EqualValues(t, 1, body.Data.Latency[metrics.CapabilityFetch]["errors"])
}

func TestAuthHandler_RevokeWithoutRedis(t *testing.T) {
	api := newTestAPI(t)

	status, env := api.do(t, fiber.MethodPost, "/api/v1/auth/revoke", validToken(t), nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperr.CodeNotFound, env.Error.Code)

	status, _ = api.do(t, fiber.MethodPost, "/api/v1/auth/revoke", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
