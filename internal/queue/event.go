// Package queue defines message payloads exchanged over the message broker
// and the audit consumer that records them.
package queue

// Queue names.  Both queues are durable and use the default exchange.
const (
	AgentRegisteredQueue      = "agent.registered"
	BookingStatusChangedQueue = "booking.status_changed"
)

// AgentRegisteredEvent is published after a registration commits.  It
// carries enough for an onboarding reviewer to act without querying the
// primary database.
type AgentRegisteredEvent struct {
	AgentID       string `json:"agent_id"`
	AgencyID      string `json:"agency_id"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CreatedAgency bool   `json:"created_agency"`
	AgencyName    string `json:"agency_name,omitempty"`
	RegisteredAt  string `json:"registered_at"`
}

// BookingStatusChangedEvent is published when an administrator approves,
// rejects or redeems a booking.
type BookingStatusChangedEvent struct {
	BookingID string `json:"booking_id"`
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedAt string `json:"changed_at"`
}
