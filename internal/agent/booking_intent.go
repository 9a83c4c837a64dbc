package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

var bookingKeywords = []string{
	"test drive", "schedule", "appointment", "book", "come in", "visit",
}

// clockTimeRe requires an explicit time of day in the matched phrase.
// Date-only phrases like "next week" must not count as a booking time.
var clockTimeRe = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}|\d{1,2}\s*(am|pm)|\bnoon\b|\bmidnight\b)`)

// BookingIntentDetector finds date/time-bearing test-drive requests in the
// raw inbound message text. Detection is advisory; the actual booking is
// performed later by the booking worker.
type BookingIntentDetector struct {
	parser *when.Parser
	logger *logging.Logger
	now    func() time.Time
}

// NewBookingIntentDetector creates a detector with English date rules.
func NewBookingIntentDetector(logger *logging.Logger) *BookingIntentDetector {
	if logger == nil {
		logger = logging.Default()
	}
	parser := when.New(nil)
	parser.Add(en.All...)
	parser.Add(common.All...)
	return &BookingIntentDetector{
		parser: parser,
		logger: logger,
		now:    time.Now,
	}
}

// Detect returns the resolved booking time and matched text span, or nil if
// the message carries no booking keyword or no specific clock time.
func (d *BookingIntentDetector) Detect(message string) *BookingIntent {
	lower := strings.ToLower(message)
	if firstMatch(lower, bookingKeywords) == "" {
		return nil
	}

	now := d.now()
	result, err := d.parser.Parse(message, now)
	if err != nil {
		d.logger.Warn("booking date parse failed", "error", err)
		return nil
	}
	if result == nil {
		return nil
	}
	if !clockTimeRe.MatchString(result.Text) {
		return nil
	}

	// Ambiguous dates resolve forward.
	resolved := result.Time
	for !resolved.After(now) {
		resolved = resolved.Add(24 * time.Hour)
	}

	d.logger.Debug("booking intent detected", "when", resolved, "text", result.Text)
	return &BookingIntent{When: resolved, Text: result.Text}
}
