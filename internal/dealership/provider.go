package dealership

import (
	"context"

	"github.com/shiftly-ai/agent-backend/internal/agent"
)

// Provider adapts a Reader onto the profile lookup the agent pipeline uses
// for prompt composition.
type Provider struct {
	reader Reader
}

var _ agent.DealershipProvider = (*Provider)(nil)

// NewProvider creates a pipeline-facing profile provider.
func NewProvider(reader Reader) *Provider {
	if reader == nil {
		panic("dealership: reader cannot be nil")
	}
	return &Provider{reader: reader}
}

// GetDealership returns the prompt-facing slice of the dealership profile.
func (p *Provider) GetDealership(ctx context.Context, id string) (*agent.DealershipInfo, error) {
	d, err := p.reader.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &agent.DealershipInfo{
		ID:          d.ID,
		Name:        d.Name,
		Hours:       d.Hours,
		Personality: d.Personality,
		Phone:       d.PhoneNumber,
		Email:       d.Email,
		Timezone:    d.Timezone,
	}, nil
}
