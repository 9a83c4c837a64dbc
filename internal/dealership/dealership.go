// Package dealership provides dealership profiles and staff lookup backing
// prompt composition, webhook routing, and escalation assignment.
package dealership

import "time"

// Dealership is one dealership tenant.
type Dealership struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	Hours       string    `json:"hours,omitempty"`
	Personality string    `json:"personality,omitempty"`
	Timezone    string    `json:"timezone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is a dealership staff member who can take over escalated
// conversations.
type User struct {
	ID           string    `json:"id"`
	DealershipID string    `json:"dealership_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
