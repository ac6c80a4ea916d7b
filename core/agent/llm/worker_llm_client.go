package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/resilience"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// Client talks to an OpenAI-compatible chat completion API (Mistral by default).
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	retry     resilience.RetryConfig
	cb        *gobreaker.CircuitBreaker
	log       zerolog.Logger
}

type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
}

const DefaultModel = "mistral-large-latest"

var _ out.TextClassifier = (*Client)(nil)

func NewClientWithConfig(cfg ClientConfig, log zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		retry.Delay = cfg.RetryDelay
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	log = log.With().Str("component", "llm").Logger()
	return &Client{
		client:    openai.NewClientWithConfig(oc),
		model:     model,
		maxTokens: cfg.MaxTokens,
		timeout:   timeout,
		retry:     retry,
		cb:        resilience.NewBreaker(resilience.DefaultBreakerConfig("llm-api"), log),
		log:       log,
	}
}

// ClassifyText sends prompt as a single user message and returns the answer text.
// Empty answers count as failures and are retried.
func (c *Client) ClassifyText(ctx context.Context, prompt string, cfg out.ModelConfig) (*out.Completion, error) {
	req := c.request(prompt, cfg)

	start := time.Now()
	var completion *out.Completion
	err := resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := resilience.Execute(c.cb, func() (openai.ChatCompletionResponse, error) {
			resp, err := c.client.CreateChatCompletion(callCtx, req)
			return resp, classifyErr(err)
		})
		if err != nil {
			c.log.Debug().Err(err).Msg("chat completion failed")
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return apperr.EmptyContent("llm answer")
		}

		completion = &out.Completion{
			Content:          resp.Choices[0].Message.Content,
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
		return nil
	})
	elapsed := time.Since(start)
	metrics.RecordLatency(metrics.CapabilityLLM, elapsed, err)

	if err != nil {
		return nil, apperr.ExternalError("llm", err)
	}
	completion.Elapsed = elapsed
	return completion, nil
}

func (c *Client) request(prompt string, cfg out.ModelConfig) openai.ChatCompletionRequest {
	model := cfg.Model
	if model == "" {
		model = c.model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	// temperature is omitempty upstream, so an exact zero would fall back to the
	// server default
	temperature := float32(cfg.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

// classifyErr marks client-side API errors as permanent so they are not retried.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return resilience.Permanent(err)
	}
	return err
}
