package model

import (
	"math"
	"time"
)

// Booking lifecycle states.  Pending bookings are either verified or
// rejected by an administrator; verified bookings can later be redeemed.
const (
	BookingPending  = "pending"
	BookingVerified = "verified"
	BookingRejected = "rejected"
	BookingRedeemed = "redeemed"
)

// BookingStatuses lists every status in display order.
var BookingStatuses = []string{BookingPending, BookingVerified, BookingRejected, BookingRedeemed}

// Booking records a hotel stay submitted by an agent.
//
// Fields:
//
//	ID             – UUID primary key.
//	AgentID        – agent who submitted the booking.
//	HotelID        – hotel of the stay.
//	RoomTypeID     – room category, which determines the points factor.
//	GuestName      – name of the travelling guest.
//	ArrivalDate    – first night of the stay.
//	NumberOfNights – length of the stay.
//	Points         – incentive points awarded.
//	YourRef        – the agent's own reference.
//	HotelRef       – the hotel's confirmation reference.
//	Status         – pending, verified, rejected or redeemed.
type Booking struct {
	ID             string    `json:"id"`             // bookings.id
	AgentID        string    `json:"agentId"`        // bookings.agent_id
	HotelID        string    `json:"hotelId"`        // bookings.hotel_id
	RoomTypeID     string    `json:"roomTypeId"`     // bookings.room_type_id
	GuestName      string    `json:"guestName"`      // bookings.guest_name
	ArrivalDate    time.Time `json:"arrivalDate"`    // bookings.arrival_date
	NumberOfNights int       `json:"numberOfNights"` // bookings.number_of_nights
	Points         int       `json:"points"`         // bookings.points
	YourRef        *string   `json:"yourRef"`        // bookings.your_ref (nullable)
	HotelRef       *string   `json:"hotelRef"`       // bookings.hotel_ref (nullable)
	Status         string    `json:"status"`         // bookings.status
	CreatedAt      time.Time `json:"createdAt"`      // bookings.created_at
	UpdatedAt      time.Time `json:"updatedAt"`      // bookings.updated_at
}

// BookingRow is a booking joined with the display names shown in the admin
// table.  Missing joins are rendered as "Unknown ...".
type BookingRow struct {
	Booking
	HotelName    string `json:"hotelName"`
	RoomTypeName string `json:"roomTypeName"`
	AgentName    string `json:"agentName"`
}

// BookingStats holds the dashboard counters.
type BookingStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Verified int64 `json:"verified"`
	Rejected int64 `json:"rejected"`
	Redeemed int64 `json:"redeemed"`
	Agents   int64 `json:"agents"`
	Agencies int64 `json:"agencies"`
}

// Points converts nights into incentive points using the room type factor,
// rounded to the nearest whole point.
func Points(nights int, factor float64) int {
	if nights <= 0 || factor <= 0 {
		return 0
	}
	return int(math.Round(float64(nights) * factor))
}

// NextBookingStatus returns the status an action moves a booking into and
// the status the booking must currently hold.  ok is false for an unknown
// action.
func NextBookingStatus(action string) (from, to string, ok bool) {
	switch action {
	case "approve":
		return BookingPending, BookingVerified, true
	case "reject":
		return BookingPending, BookingRejected, true
	case "redeem":
		return BookingVerified, BookingRedeemed, true
	}
	return "", "", false
}
