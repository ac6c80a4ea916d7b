package shipping

import (
	"maps"
	"sync"
)

// Usage counter keys.
const (
	UsageFetchCalls          = "fetch_calls"
	UsageLLMCalls            = "llm_calls"
	UsageLLMPromptTokens     = "llm_prompt_tokens"
	UsageLLMCompletionTokens = "llm_completion_tokens"
)

// Usage counts external calls. Safe for concurrent use.
type Usage struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewUsage() *Usage {
	return &Usage{counts: make(map[string]int)}
}

func (u *Usage) Add(key string, n int) {
	u.mu.Lock()
	u.counts[key] += n
	u.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (u *Usage) Snapshot() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return maps.Clone(u.counts)
}
