package agent

import (
	"context"
	"errors"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

// FallbackLLMClient wraps a primary LLM client with a secondary provider.
// If the primary fails retryably, it automatically retries with the fallback.
type FallbackLLMClient struct {
	primary       LLMClient
	fallback      LLMClient
	fallbackModel string
	logger        *logging.Logger
}

// NewFallbackLLMClient creates a new fallback-enabled LLM client. If
// fallback is nil, the client only uses the primary provider. When
// fallbackModel is non-empty it replaces the request model on the
// fallback attempt.
func NewFallbackLLMClient(primary, fallback LLMClient, fallbackModel string, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("agent: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		primary:       primary,
		fallback:      fallback,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

// Complete sends a completion request to the primary LLM. If it fails and a
// fallback is configured, retries with the fallback. Non-retryable request
// errors are returned as-is so callers do not burn a second provider call on
// a request that can never succeed.
func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, ErrInvalidRequest) {
		return LLMResponse{}, err
	}

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return LLMResponse{}, err
	}

	if c.fallbackModel != "" {
		req.Model = c.fallbackModel
	}
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}

	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
