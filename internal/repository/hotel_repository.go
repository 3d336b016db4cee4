package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/agent-incentives/internal/model"
)

// HotelRepo reads the hotel catalogue.
type HotelRepo struct {
	db *sql.DB
}

// NewHotelRepo returns a new HotelRepo bound to the given database.
func NewHotelRepo(db *sql.DB) *HotelRepo { return &HotelRepo{db: db} }

// ListWithRoomTypes returns every hotel with its room types attached, both
// ordered by name.  Hotels without room types are included with an empty
// list.
func (r *HotelRepo) ListWithRoomTypes(ctx context.Context) ([]model.Hotel, error) {
	const q = `SELECT h.id, h.name, COALESCE(h.address,''), COALESCE(h.city,''), COALESCE(h.country,''),
	                  h.status, h.created_at, rt.id, rt.name, rt.points_factor
	           FROM hotels h
	           LEFT JOIN room_types rt ON rt.hotel_id = h.id
	           ORDER BY h.name, h.id, rt.name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Hotel{}
	index := map[string]int{}
	for rows.Next() {
		var (
			h      model.Hotel
			rtID   sql.NullString
			rtName sql.NullString
			factor sql.NullFloat64
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.City, &h.Country, &h.Status, &h.CreatedAt,
			&rtID, &rtName, &factor); err != nil {
			return nil, err
		}
		i, seen := index[h.ID]
		if !seen {
			h.RoomTypes = []model.RoomType{}
			out = append(out, h)
			i = len(out) - 1
			index[h.ID] = i
		}
		if rtID.Valid {
			out[i].RoomTypes = append(out[i].RoomTypes, model.RoomType{
				ID:           rtID.String,
				HotelID:      h.ID,
				Name:         rtName.String,
				PointsFactor: factor.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
