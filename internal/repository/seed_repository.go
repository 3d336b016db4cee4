package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// SeedRepo loads and clears the demonstration data set.
type SeedRepo struct {
	db *sql.DB
}

// NewSeedRepo returns a new SeedRepo bound to the given database.
func NewSeedRepo(db *sql.DB) *SeedRepo { return &SeedRepo{db: db} }

// Seed inserts one agency, one agent, two hotels, three room types and two
// bookings in a single transaction.  It returns false without writing when
// any agent already exists.
func (r *SeedRepo) Seed(ctx context.Context) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var agents int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&agents); err != nil {
		return false, err
	}
	if agents > 0 {
		return false, nil
	}

	agencyID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agencies (id, name, address, city, country, zip_code, status) VALUES (?,?,?,?,?,?,?)`,
		agencyID, "Travel Pro Agency", "123 Main St", "New York", "USA", "10001", model.AgencyActive); err != nil {
		return false, err
	}

	agentID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO agents (id, email, role, agency_id, first_name, last_name, status) VALUES (?,?,?,?,?,?,?)`,
		agentID, "agent@example.com", model.RoleAgent, agencyID, "John", "Doe", model.AgentActive); err != nil {
		return false, err
	}

	hotels := []model.Hotel{
		{ID: uuid.NewString(), Name: "Grand Plaza Hotel", Address: "456 Hotel Ave", City: "Miami", Country: "USA"},
		{ID: uuid.NewString(), Name: "Ocean View Resort", Address: "789 Beach Blvd", City: "California", Country: "USA"},
	}
	for _, h := range hotels {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO hotels (id, name, address, city, country, status) VALUES (?,?,?,?,?,?)`,
			h.ID, h.Name, h.Address, h.City, h.Country, model.HotelActive); err != nil {
			return false, err
		}
	}

	roomTypes := []model.RoomType{
		{ID: uuid.NewString(), HotelID: hotels[0].ID, Name: "Standard Room", PointsFactor: 1.0},
		{ID: uuid.NewString(), HotelID: hotels[0].ID, Name: "Deluxe Suite", PointsFactor: 2.5},
		{ID: uuid.NewString(), HotelID: hotels[1].ID, Name: "Ocean View", PointsFactor: 2.0},
	}
	for _, rt := range roomTypes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_types (id, hotel_id, name, points_factor) VALUES (?,?,?,?)`,
			rt.ID, rt.HotelID, rt.Name, rt.PointsFactor); err != nil {
			return false, err
		}
	}

	ref := func(s string) *string { return &s }
	bookings := []model.Booking{
		{
			HotelID: hotels[0].ID, RoomTypeID: roomTypes[0].ID, GuestName: "Jane Smith",
			ArrivalDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), NumberOfNights: 3,
			Points: model.Points(3, roomTypes[0].PointsFactor), YourRef: ref("REF001"), HotelRef: ref("HTL001"),
			Status: model.BookingVerified,
		},
		{
			HotelID: hotels[1].ID, RoomTypeID: roomTypes[2].ID, GuestName: "Bob Johnson",
			ArrivalDate: time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), NumberOfNights: 5,
			Points: model.Points(5, roomTypes[2].PointsFactor), YourRef: ref("REF002"),
			Status: model.BookingPending,
		},
	}
	for _, b := range bookings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (id, agent_id, hotel_id, room_type_id, guest_name, arrival_date,
			                       number_of_nights, points, your_ref, hotel_ref, status)
			 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			uuid.NewString(), agentID, b.HotelID, b.RoomTypeID, b.GuestName, b.ArrivalDate.Format("2006-01-02"),
			b.NumberOfNights, b.Points, b.YourRef, b.HotelRef, b.Status); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Clear deletes every row, children first, so that foreign keys hold.
func (r *SeedRepo) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"bookings", "room_types", "hotels", "agents", "agencies"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return tx.Commit()
}
