package model

import "time"

// Agency lifecycle states.  New agencies created during registration start
// as pending and become active once an administrator approves them.
const (
	AgencyPending  = "pending"
	AgencyActive   = "active"
	AgencyArchived = "archived"
)

// Agency is a travel agency that employs agents.  Its postal address is used
// to match prospective agents against existing agencies during registration.
// This struct corresponds to a row in the `agencies` table.
//
// Fields:
//
//	ID        – UUID primary key.
//	Name      – display name.
//	Address   – free-text street address.
//	City      – city name.
//	Country   – country name.
//	ZipCode   – postal code, matched by prefix.
//	Status    – pending, active or archived.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Agency struct {
	ID        string    `json:"id"`        // agencies.id
	Name      string    `json:"name"`      // agencies.name
	Address   string    `json:"address"`   // agencies.address
	City      string    `json:"city"`      // agencies.city
	Country   string    `json:"country"`   // agencies.country
	ZipCode   string    `json:"zipCode"`   // agencies.zip_code
	Status    string    `json:"status"`    // agencies.status
	CreatedAt time.Time `json:"createdAt"` // agencies.created_at
	UpdatedAt time.Time `json:"updatedAt"` // agencies.updated_at
}

// AgencySummary is the projection returned to a registering agent when
// existing agencies match the postal code and address they typed.
type AgencySummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode"`
}
