package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shiftly-ai/agent-backend/internal/agent"
	"github.com/shiftly-ai/agent-backend/internal/crm"
	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

const (
	crmSyncAttempts   = 3
	crmSyncRetryDelay = 2 * time.Second
)

// CRMSyncHandler pushes qualified leads into the dealership's CRM. Create
// jobs ensure a contact exists; update jobs refresh the qualification score
// and vehicle interest and leave a note for the sales team.
type CRMSyncHandler struct {
	crm    crm.Adapter
	logger *logging.Logger
}

func NewCRMSyncHandler(adapter crm.Adapter, logger *logging.Logger) *CRMSyncHandler {
	if adapter == nil {
		panic("jobs: crm adapter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CRMSyncHandler{crm: adapter, logger: logger}
}

func (h *CRMSyncHandler) Handle(ctx context.Context, env Envelope) error {
	var job agent.CRMSyncJob
	if err := json.Unmarshal(env.Payload, &job); err != nil {
		return fmt.Errorf("jobs: failed to decode crm sync job: %w", err)
	}
	if job.CustomerPhone == "" {
		return fmt.Errorf("jobs: crm sync job missing customer phone")
	}

	return withRetry(ctx, crmSyncAttempts, crmSyncRetryDelay, func() error {
		return h.sync(ctx, job)
	})
}

func (h *CRMSyncHandler) sync(ctx context.Context, job agent.CRMSyncJob) error {
	contactID, err := h.crm.FindContact(ctx, job.CustomerPhone)
	if err != nil {
		return fmt.Errorf("jobs: crm contact lookup failed: %w", err)
	}

	if contactID == "" {
		contactID, err = h.crm.CreateContact(ctx, crm.Contact{
			Phone: job.CustomerPhone,
			Tags:  []string{"ai-lead"},
			CustomFields: map[string]any{
				"conversation_id": job.ConversationID,
				"dealership_id":   job.DealershipID,
			},
		})
		if err != nil {
			return fmt.Errorf("jobs: crm contact create failed: %w", err)
		}
		h.logger.Info("crm contact created", "contact_id", contactID, "conversation_id", job.ConversationID)
	}

	if job.Action != agent.CRMSyncUpdate {
		return nil
	}

	fields := map[string]any{
		"qualification_score": job.QualificationScore,
	}
	if vi := job.VehicleInterest; vi != nil && !vi.IsZero() {
		fields["vehicle_make"] = vi.Make
		fields["vehicle_model"] = vi.Model
		fields["vehicle_condition"] = vi.Condition
	}
	if err := h.crm.UpdateContact(ctx, contactID, crm.Contact{
		Phone:        job.CustomerPhone,
		CustomFields: fields,
	}); err != nil {
		return fmt.Errorf("jobs: crm contact update failed: %w", err)
	}

	note := crm.Note{
		Body:      fmt.Sprintf("AI agent qualification update: score %d/100.%s", job.QualificationScore, vehicleSummary(job.VehicleInterest)),
		Timestamp: time.Now().UTC(),
	}
	if err := h.crm.AddNote(ctx, contactID, note); err != nil {
		// The contact is already synced; a lost note is not worth a retry cycle.
		h.logger.Warn("crm note failed", "error", err, "contact_id", contactID)
	}

	h.logger.Info("crm contact updated",
		"contact_id", contactID,
		"conversation_id", job.ConversationID,
		"score", job.QualificationScore,
	)
	return nil
}

func vehicleSummary(vi *agent.VehicleInterest) string {
	if vi == nil || vi.IsZero() {
		return ""
	}
	out := " Interested in"
	for _, part := range []string{vi.Year, vi.Condition, vi.Make, vi.Model, vi.Type} {
		if part != "" {
			out += " " + part
		}
	}
	return out + "."
}
