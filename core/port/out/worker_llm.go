package out

import (
	"context"
	"time"
)

// TextClassifier sends a prompt to a language model and returns its raw answer.
type TextClassifier interface {
	ClassifyText(ctx context.Context, prompt string, cfg ModelConfig) (*Completion, error)
}

// ModelConfig are the per-call model parameters.
type ModelConfig struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	JSONMode     bool    `json:"json_mode,omitempty"`
	ForceRefresh bool    `json:"-"`
}

// Completion is the model answer plus token usage.
type Completion struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Elapsed          time.Duration `json:"elapsed"`
}
