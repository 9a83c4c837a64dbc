package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const (
	replyMaxAttempts   = 3
	replyHistoryWindow = 10
)

// Reply is the outcome of one reply-generation pass. Fallback replies carry
// zero token usage.
type Reply struct {
	Text     string
	Usage    TokenUsage
	Fallback bool
}

// ReplyGenerator calls the AI provider with bounded retry and degrades to a
// deterministic keyword-based reply when the provider is unavailable. The
// customer always gets some reply; a provider outage never fails the turn.
type ReplyGenerator struct {
	client      LLMClient
	model       string
	maxTokens   int32
	temperature float32
	logger      *logging.Logger
	sleep       func(context.Context, time.Duration) error
}

// ReplyGeneratorOption customizes a ReplyGenerator.
type ReplyGeneratorOption func(*ReplyGenerator)

// WithReplySleep overrides the backoff sleep, used by tests to avoid
// real delays.
func WithReplySleep(sleep func(context.Context, time.Duration) error) ReplyGeneratorOption {
	return func(g *ReplyGenerator) { g.sleep = sleep }
}

// WithReplyTuning overrides max tokens and temperature.
func WithReplyTuning(maxTokens int32, temperature float32) ReplyGeneratorOption {
	return func(g *ReplyGenerator) {
		g.maxTokens = maxTokens
		g.temperature = temperature
	}
}

// NewReplyGenerator creates a new reply generator.
func NewReplyGenerator(client LLMClient, model string, logger *logging.Logger, opts ...ReplyGeneratorOption) *ReplyGenerator {
	if client == nil {
		panic("agent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &ReplyGenerator{
		client:      client,
		model:       model,
		maxTokens:   200,
		temperature: 0.7,
		logger:      logger,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a reply for the trailing window of the conversation.
// The only error it returns is context cancellation; every provider failure
// mode degrades to the deterministic fallback instead.
func (g *ReplyGenerator) Generate(ctx context.Context, messages []Message, systemPrompt string) (Reply, error) {
	req := LLMRequest{
		Model:       g.model,
		System:      []string{systemPrompt},
		Messages:    chatWindow(messages, replyHistoryWindow),
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var lastErr error
	for attempt := 1; attempt <= replyMaxAttempts; attempt++ {
		resp, err := g.client.Complete(ctx, req)
		if err == nil {
			g.logger.Debug("reply generated", "attempt", attempt, "tokens", resp.Usage.TotalTokens)
			return Reply{Text: resp.Text, Usage: resp.Usage}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}

		if errors.Is(err, ErrInvalidRequest) {
			g.logger.Error("llm rejected request, using fallback", "error", err.Error())
			break
		}

		if errors.Is(err, ErrRateLimited) {
			delay := time.Duration(1<<attempt) * time.Second
			g.logger.Warn("llm rate limited, backing off", "attempt", attempt, "delay", delay)
			if err := g.sleep(ctx, delay); err != nil {
				return Reply{}, err
			}
			continue
		}

		g.logger.Error("llm error", "attempt", attempt, "error", err.Error())
	}

	g.logger.Error("llm failed after retries, using fallback", "error", lastErr.Error())
	return Reply{Text: fallbackReply(messages), Fallback: true}, nil
}

// chatWindow converts the trailing window of conversation messages into
// provider chat messages. Human-agent turns read as assistant turns.
func chatWindow(messages []Message, window int) []ChatMessage {
	if len(messages) > window {
		messages = messages[len(messages)-window:]
	}
	chat := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := ChatRoleAssistant
		if m.Role == RoleCustomer {
			role = ChatRoleUser
		}
		chat = append(chat, ChatMessage{Role: role, Content: m.Content})
	}
	return chat
}

// fallbackReply picks a canned reply by scanning the last message for the
// strongest keyword signal.
func fallbackReply(messages []Message) string {
	var last string
	if len(messages) > 0 {
		last = strings.ToLower(messages[len(messages)-1].Content)
	}

	switch {
	case strings.Contains(last, "price") || strings.Contains(last, "cost"):
		return "I'd love to help with pricing! What vehicle are you interested in? I can get you exact numbers."
	case strings.Contains(last, "test drive") || strings.Contains(last, "appointment"):
		return "I can help schedule a test drive! What day works best for you this week?"
	case strings.Contains(last, "trade"):
		return "We'd be happy to look at your trade-in! What are you currently driving?"
	default:
		return "Thanks for reaching out! I'm here to help you find the perfect vehicle. What are you looking for?"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
