package model

import "time"

// Agent roles.
const (
	RoleAgent         = "agent"
	RoleHotelAdmin    = "hotel_admin"
	RoleRegionalAdmin = "regional_admin"
	RoleGlobalAdmin   = "global_admin"
)

// Agent lifecycle states.
const (
	AgentPending  = "pending"
	AgentActive   = "active"
	AgentDisabled = "disabled"
)

// Agent is an individual who submits bookings on behalf of an agency.  The
// email column is unique and doubles as the natural key for duplicate
// registration detection.  AgencyID is assigned once, when the row is
// inserted, and never changes afterwards.
//
// Fields:
//
//	ID        – UUID primary key.
//	Email     – unique, lower-cased email address.
//	FirstName – given name.
//	LastName  – family name.
//	Telephone – optional phone number (nil when not supplied).
//	AgencyID  – owning agency.
//	Role      – agent, hotel_admin, regional_admin or global_admin.
//	Status    – pending, active or disabled.
type Agent struct {
	ID        string    `json:"id"`                  // agents.id
	Email     string    `json:"email"`               // agents.email
	FirstName string    `json:"firstName"`           // agents.first_name
	LastName  string    `json:"lastName"`            // agents.last_name
	Telephone *string   `json:"telephone,omitempty"` // agents.telephone (nullable)
	AgencyID  string    `json:"agencyId"`            // agents.agency_id
	Role      string    `json:"role"`                // agents.role
	Status    string    `json:"status"`              // agents.status
	CreatedAt time.Time `json:"createdAt"`           // agents.created_at
	UpdatedAt time.Time `json:"updatedAt"`           // agents.updated_at
}

// AgentListing is an agent row joined with its agency name for the admin list.
type AgentListing struct {
	Agent
	AgencyName string `json:"agencyName"`
}
