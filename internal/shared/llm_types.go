package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// GenerationMeta holds operational metadata for one meal plan generation.
// Source is "remote" or "fallback"; ErrorKind is empty when the remote
// call produced the plan.
type GenerationMeta struct {
	Source    string
	ErrorKind string
	Usage     TokenUsage
	Latency   time.Duration
}
