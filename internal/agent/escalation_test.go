package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscalationEvaluator_Evaluate(t *testing.T) {
	eval := NewEscalationEvaluator(nil)

	tests := []struct {
		name           string
		messages       []Message
		wantEscalate   bool
		wantConfidence float64
	}{
		{
			name:           "no customer messages",
			messages:       []Message{{Role: RoleAgent, Content: "Hi, how can I help?"}},
			wantEscalate:   false,
			wantConfidence: 0,
		},
		{
			name:           "explicit human request",
			messages:       customerMessages("I want to speak to a human right now"),
			wantEscalate:   true,
			wantConfidence: 0.95,
		},
		{
			name:           "operator request",
			messages:       customerMessages("operator please"),
			wantEscalate:   true,
			wantConfidence: 0.95,
		},
		{
			name:           "multiple frustration signals",
			messages:       customerMessages("this is ridiculous", "complete waste of time"),
			wantEscalate:   true,
			wantConfidence: 0.85,
		},
		{
			name:           "single frustration with repetition",
			messages:       customerMessages("where is my quote", "where is my quote", "this is ridiculous"),
			wantEscalate:   true,
			wantConfidence: 0.80,
		},
		{
			name:           "complex topic",
			messages:       customerMessages("I need help with a warranty claim"),
			wantEscalate:   true,
			wantConfidence: 0.75,
		},
		{
			name:           "repetition without frustration",
			messages:       customerMessages("is the camry available", "is the camry available", "is the camry available"),
			wantEscalate:   true,
			wantConfidence: 0.70,
		},
		{
			name:           "calm short conversation",
			messages:       customerMessages("hi, do you have any trucks in stock"),
			wantEscalate:   false,
			wantConfidence: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := eval.Evaluate(tt.messages)
			assert.Equal(t, tt.wantEscalate, result.ShouldEscalate)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 0.001)
			if tt.wantEscalate {
				assert.NotEmpty(t, result.Reason)
			} else {
				assert.Empty(t, result.Reason)
			}
		})
	}
}

func TestEscalationEvaluator_LongConversation(t *testing.T) {
	eval := NewEscalationEvaluator(nil)

	// Distinct, calm messages so only the length rule can fire.
	contents := []string{
		"hi there",
		"do you have any trucks",
		"what about the tacoma",
		"is it four wheel drive",
		"what colors come in stock",
		"how big is the bed",
		"does it tow much",
		"what engine does it have",
		"is there a hybrid version",
		"what year models do you carry",
		"do any have leather seats",
		"what is the seating capacity",
		"can you tell me about the warranty coverage period",
		"does it come with navigation",
		"when are you open on weekends",
	}
	result := eval.Evaluate(customerMessages(contents...))
	assert.True(t, result.ShouldEscalate)
	assert.InDelta(t, 0.55, result.Confidence, 0.001)
}

func TestEscalationEvaluator_RecentWindowOnly(t *testing.T) {
	eval := NewEscalationEvaluator(nil)

	// The explicit request is older than the trailing five messages, so it
	// must not trigger the explicit rule.
	msgs := customerMessages(
		"talk to a human",
		"actually never mind",
		"do you have suvs",
		"what colors are there",
		"is it awd",
		"how about hybrids",
	)
	result := eval.Evaluate(msgs)
	assert.False(t, result.ShouldEscalate)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("same", "same"))
	assert.Equal(t, 0.0, similarity("", "abc"))
	assert.Greater(t, similarity("is the camry here", "is the camry here?"), 0.8)
	assert.Less(t, similarity("totally different", "words entirely"), 0.5)
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("abc", "abc"))
	assert.Equal(t, 1, levenshteinDistance("abc", "abd"))
	assert.Equal(t, 3, levenshteinDistance("abc", ""))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}
