package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackLLMClient_PrimarySucceeds(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){ok("primary reply")}}
	fallback := &scriptedLLM{responses: []func() (LLMResponse, error){ok("fallback reply")}}
	client := NewFallbackLLMClient(primary, fallback, "fallback-model", nil)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "primary-model"})
	require.NoError(t, err)
	assert.Equal(t, "primary reply", resp.Text)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackLLMClient_FallsBackOnFailure(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){fail(errors.New("primary down"))}}
	fallback := &scriptedLLM{responses: []func() (LLMResponse, error){ok("fallback reply")}}
	client := NewFallbackLLMClient(primary, fallback, "fallback-model", nil)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "primary-model"})
	require.NoError(t, err)
	assert.Equal(t, "fallback reply", resp.Text)

	require.Len(t, fallback.requests, 1)
	assert.Equal(t, "fallback-model", fallback.requests[0].Model)
}

func TestFallbackLLMClient_KeepsModelWhenUnset(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){fail(errors.New("primary down"))}}
	fallback := &scriptedLLM{responses: []func() (LLMResponse, error){ok("fallback reply")}}
	client := NewFallbackLLMClient(primary, fallback, "", nil)

	_, err := client.Complete(context.Background(), LLMRequest{Model: "primary-model"})
	require.NoError(t, err)
	require.Len(t, fallback.requests, 1)
	assert.Equal(t, "primary-model", fallback.requests[0].Model)
}

func TestFallbackLLMClient_InvalidRequestNotRetried(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){
		fail(fmt.Errorf("%w: malformed", ErrInvalidRequest)),
	}}
	fallback := &scriptedLLM{responses: []func() (LLMResponse, error){ok("fallback reply")}}
	client := NewFallbackLLMClient(primary, fallback, "fallback-model", nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackLLMClient_NoFallbackConfigured(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){fail(errors.New("primary down"))}}
	client := NewFallbackLLMClient(primary, nil, "", nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.EqualError(t, err, "primary down")
}

func TestFallbackLLMClient_BothFail(t *testing.T) {
	primary := &scriptedLLM{responses: []func() (LLMResponse, error){fail(errors.New("primary down"))}}
	fallback := &scriptedLLM{responses: []func() (LLMResponse, error){
		fail(fmt.Errorf("%w: throttled", ErrRateLimited)),
	}}
	client := NewFallbackLLMClient(primary, fallback, "", nil)

	_, err := client.Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestFallbackLLMClient_NilPrimaryPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewFallbackLLMClient(nil, nil, "", nil)
	})
}
