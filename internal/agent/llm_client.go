package agent

import (
	"context"
	"errors"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// Classified provider failures. Providers wrap their native errors with one
// of these sentinels so the reply generator can pick a retry strategy.
var (
	// ErrRateLimited marks a retryable throttling failure.
	ErrRateLimited = errors.New("agent: llm rate limited")
	// ErrInvalidRequest marks a non-retryable auth or request failure.
	ErrInvalidRequest = errors.New("agent: llm invalid request")
)

// ChatMessage is the provider-neutral message representation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
