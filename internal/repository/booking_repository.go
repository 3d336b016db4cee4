package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// BookingPageSize is the number of rows in one page of the admin table.
const BookingPageSize = 5

// bookingSearchLimit caps guest-name searches, which are not paginated.
const bookingSearchLimit = 1000

// BookingQuery defines filters and pagination for the admin bookings table.
// Status "all" (or empty) disables the status filter.  A non-empty Search
// switches to an unpaginated guest-name search.
type BookingQuery struct {
	Status string
	Search string
	Offset int
}

// BookingPage is one page of the admin table.  NewOffset is nil when there
// is no further page.
type BookingPage struct {
	Bookings      []model.BookingRow `json:"bookings"`
	NewOffset     *int               `json:"newOffset"`
	TotalBookings int64              `json:"totalBookings"`
}

// BookingRepo provides CRUD operations and status transitions for bookings.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingRowSelect = `SELECT b.id, b.agent_id, b.hotel_id, b.room_type_id, b.guest_name,
	       b.arrival_date, b.number_of_nights, b.points, b.your_ref, b.hotel_ref, b.status,
	       b.created_at, b.updated_at,
	       COALESCE(h.name, 'Unknown Hotel'),
	       COALESCE(rt.name, 'Unknown Room'),
	       COALESCE(a.first_name, 'Unknown Agent')
	FROM bookings b
	LEFT JOIN hotels h      ON h.id = b.hotel_id
	LEFT JOIN room_types rt ON rt.id = b.room_type_id
	LEFT JOIN agents a      ON a.id = b.agent_id`

// List returns a page of bookings for the admin table.
func (r *BookingRepo) List(ctx context.Context, q BookingQuery) (BookingPage, error) {
	where := []string{}
	args := []any{}

	if st := strings.ToLower(strings.TrimSpace(q.Status)); st != "" && st != "all" {
		where = append(where, "b.status = ?")
		args = append(args, st)
	}
	search := strings.TrimSpace(q.Search)
	if search != "" {
		where = append(where, "LOWER(b.guest_name) LIKE ?")
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	if search != "" {
		rows, err := r.queryRows(ctx, bookingRowSelect+` WHERE `+cond+`
			ORDER BY b.created_at DESC, b.id LIMIT ?`, append(args, bookingSearchLimit)...)
		if err != nil {
			return BookingPage{}, err
		}
		return BookingPage{Bookings: rows, TotalBookings: int64(len(rows))}, nil
	}

	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b WHERE `+cond, args...).Scan(&total); err != nil {
		return BookingPage{}, err
	}

	rows, err := r.queryRows(ctx, bookingRowSelect+` WHERE `+cond+`
		ORDER BY b.created_at DESC, b.id LIMIT ? OFFSET ?`,
		append(append([]any{}, args...), BookingPageSize, offset)...)
	if err != nil {
		return BookingPage{}, err
	}

	page := BookingPage{Bookings: rows, TotalBookings: total}
	if len(rows) >= BookingPageSize {
		next := offset + BookingPageSize
		page.NewOffset = &next
	}
	return page, nil
}

// GetByID returns a single joined booking row.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.BookingRow, error) {
	rows, err := r.queryRows(ctx, bookingRowSelect+` WHERE b.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (r *BookingRepo) queryRows(ctx context.Context, q string, args ...any) ([]model.BookingRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BookingRow{}
	for rows.Next() {
		var (
			b                 model.BookingRow
			yourRef, hotelRef sql.NullString
		)
		if err := rows.Scan(
			&b.ID, &b.AgentID, &b.HotelID, &b.RoomTypeID, &b.GuestName,
			&b.ArrivalDate, &b.NumberOfNights, &b.Points, &yourRef, &hotelRef, &b.Status,
			&b.CreatedAt, &b.UpdatedAt,
			&b.HotelName, &b.RoomTypeName, &b.AgentName,
		); err != nil {
			return nil, err
		}
		if yourRef.Valid {
			v := yourRef.String
			b.YourRef = &v
		}
		if hotelRef.Valid {
			v := hotelRef.String
			b.HotelRef = &v
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns booking counts per status together with agent and agency
// totals for the dashboard cards.
func (r *BookingRepo) Stats(ctx context.Context) (model.BookingStats, error) {
	var s model.BookingStats
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return s, err
		}
		s.Total += n
		switch status {
		case model.BookingPending:
			s.Pending = n
		case model.BookingVerified:
			s.Verified = n
		case model.BookingRejected:
			s.Rejected = n
		case model.BookingRedeemed:
			s.Redeemed = n
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&s.Agents); err != nil {
		return s, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agencies`).Scan(&s.Agencies); err != nil {
		return s, err
	}
	return s, nil
}

// Create inserts a pending booking.  Points are derived from the room type
// factor read in the same transaction.  ErrNotFound is returned for an
// unknown room type and ErrConflict when the room type belongs to another
// hotel than b.HotelID.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		hotelID string
		factor  float64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT hotel_id, points_factor FROM room_types WHERE id = ?`, b.RoomTypeID).Scan(&hotelID, &factor)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if b.HotelID == "" {
		b.HotelID = hotelID
	} else if b.HotelID != hotelID {
		return ErrConflict
	}

	b.ID = uuid.NewString()
	b.Points = model.Points(b.NumberOfNights, factor)
	b.Status = model.BookingPending
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now

	const q = `INSERT INTO bookings
		(id, agent_id, hotel_id, room_type_id, guest_name, arrival_date, number_of_nights, points, your_ref, hotel_ref, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, q, b.ID, b.AgentID, b.HotelID, b.RoomTypeID, b.GuestName,
		b.ArrivalDate.Format("2006-01-02"), b.NumberOfNights, b.Points, b.YourRef, b.HotelRef, b.Status); err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown agent or hotel", ErrNotFound)
		}
		return err
	}
	return tx.Commit()
}

// Transition applies an admin action (approve, reject, redeem) and returns
// the previous and new status.
func (r *BookingRepo) Transition(ctx context.Context, id, action string) (from, to string, err error) {
	from, to, ok := model.NextBookingStatus(action)
	if !ok {
		return "", "", fmt.Errorf("booking: unknown action %q", action)
	}
	if err := transition(ctx, r.db, "bookings", id, to, from); err != nil {
		return "", "", err
	}
	return from, to, nil
}

// Delete removes a booking by id.
func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
