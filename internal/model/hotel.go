package model

import "time"

// Hotel lifecycle states.
const (
	HotelActive   = "active"
	HotelInactive = "inactive"
	HotelArchived = "archived"
)

// Hotel is a property participating in the incentive program.  Each hotel
// offers one or more room types.
type Hotel struct {
	ID        string     `json:"id"`                  // hotels.id
	Name      string     `json:"name"`                // hotels.name
	Address   string     `json:"address"`             // hotels.address
	City      string     `json:"city"`                // hotels.city
	Country   string     `json:"country"`             // hotels.country
	Status    string     `json:"status"`              // hotels.status
	RoomTypes []RoomType `json:"roomTypes,omitempty"` // populated by the catalogue query
	CreatedAt time.Time  `json:"createdAt"`           // hotels.created_at
}

// RoomType is a bookable room category.  PointsFactor scales the nights of a
// booking into incentive points.
type RoomType struct {
	ID           string  `json:"id"`           // room_types.id
	HotelID      string  `json:"hotelId"`      // room_types.hotel_id
	Name         string  `json:"name"`         // room_types.name
	PointsFactor float64 `json:"pointsFactor"` // room_types.points_factor
}
