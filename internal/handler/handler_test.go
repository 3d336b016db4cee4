package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/agent-incentives/internal/queue"
	"github.com/iliyamo/agent-incentives/internal/repository"
	"github.com/iliyamo/agent-incentives/internal/service"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newRegistrationHandler(db *sql.DB) *RegistrationHandler {
	m := service.NewMatcher(repository.NewAgencyRepo(db), zerolog.Nop())
	c := service.NewCoordinator(m, repository.NewRegistrationRepo(db), nil, zerolog.Nop())
	return NewRegistrationHandler(m, c)
}

func newAdminHandler(db *sql.DB) *AdminHandler {
	return &AdminHandler{
		Bookings: repository.NewBookingRepo(db),
		Agents:   repository.NewAgentRepo(db),
		Agencies: repository.NewAgencyRepo(db),
		Hotels:   repository.NewHotelRepo(db),
		Seeder:   repository.NewSeedRepo(db),
		Log:      zerolog.Nop(),
	}
}

func do(h echo.HandlerFunc, method, target, route, body string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(route)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	_ = h(c)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type purgeCounter struct{ n int }

func (p *purgeCounter) Purge(context.Context) error { p.n++; return nil }

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()
	rec := do(Health(db), http.MethodGet, "/healthz", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	mock.ExpectPing().WillReturnError(errors.New("down"))
	rec = do(Health(db), http.MethodGet, "/healthz", "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAgencyCandidates_EmptyZip(t *testing.T) {
	db, mock := newMockDB(t)
	h := newRegistrationHandler(db)

	rec := do(h.AgencyCandidates, http.MethodGet, "/registration/agency-candidates?zip=%20&q=Main", "/registration/agency-candidates", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"candidates":[]}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAgencyCandidates_Found(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("zip_code LIKE ? AND (LOWER(address) LIKE ? OR LOWER(name) LIKE ?)")).
		WithArgs("10001%", "%main%", "%main%", service.MaxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "city", "country", "zip_code"}).
			AddRow("a-1", "Travel Pro Agency", "123 Main St", "New York", "USA", "10001"))
	h := newRegistrationHandler(db)

	rec := do(h.AgencyCandidates, http.MethodGet, "/registration/agency-candidates?zip=10001&q=Main", "/registration/agency-candidates", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"candidates":[{"id":"a-1","name":"Travel Pro Agency","address":"123 Main St","city":"New York","country":"USA","zipCode":"10001"}]}`,
		rec.Body.String())
}

func TestAgencyCandidates_StoreDown(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM agencies").WillReturnError(errors.New("connection refused"))
	h := newRegistrationHandler(db)

	rec := do(h.AgencyCandidates, http.MethodGet, "/registration/agency-candidates?zip=10001", "/registration/agency-candidates", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"candidates":[]}`, rec.Body.String())
}

func TestRegister_ValidationError(t *testing.T) {
	db, mock := newMockDB(t)
	h := newRegistrationHandler(db)

	rec := do(h.Register, http.MethodPost, "/registration", "/registration",
		`{"agent":{"email":"","firstName":"A","lastName":"B"},"existingAgencyId":"a-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email", decode(t, rec)["field"])
	require.NoError(t, mock.ExpectationsWereMet())

	rec = do(h.Register, http.MethodPost, "/registration", "/registration", `{"agent":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM agents WHERE email=?")).
		WithArgs("agent@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectRollback()
	h := newRegistrationHandler(db)

	rec := do(h.Register, http.MethodPost, "/registration", "/registration",
		`{"agent":{"email":"agent@example.com","firstName":"A","lastName":"B"},"agency":{"name":"Test Co","address":"1 A St","city":"X","country":"Y","zipCode":"99999"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "already registered")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_CreatesAgency(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM agents WHERE email=?")).
		WithArgs("new@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO agencies").
		WithArgs(sqlmock.AnyArg(), "Test Co", "1 A St", "X", "Y", "99999", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO agents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	h := newRegistrationHandler(db)

	rec := do(h.Register, http.MethodPost, "/registration", "/registration",
		`{"agent":{"email":"New@Example.com","firstName":"New","lastName":"Agent"},"agency":{"name":"Test Co","address":"1 A St","city":"X","country":"Y","zipCode":"99999"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgCreatedAgency, decode(t, rec)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_ExistingIDWinsOverPayload(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1 FROM agents").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO agents").
		WithArgs(sqlmock.AnyArg(), "new@example.com", "agent", "a-1", "New", "Agent", sqlmock.AnyArg(), "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	h := newRegistrationHandler(db)

	rec := do(h.Register, http.MethodPost, "/registration", "/registration",
		`{"agent":{"email":"new@example.com","firstName":"New","lastName":"Agent"},"agency":{"name":"Ignored"},"existingAgencyId":"a-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgJoinedExisting, decode(t, rec)["message"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_GenericFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
	h := newRegistrationHandler(db)

	rec := do(h.Register, http.MethodPost, "/registration", "/registration",
		`{"agent":{"email":"new@example.com","firstName":"New","lastName":"Agent"},"existingAgencyId":"a-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, service.MsgRegistrationError, decode(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "connections")
}

func TestIntake_Confirmation(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM agencies").
		WithArgs("10001%", "%123 main st%", "%123 main st%", service.MaxCandidates).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "city", "country", "zip_code"}).
			AddRow("a-1", "Travel Pro Agency", "123 Main St", "New York", "USA", "10001"))
	h := newRegistrationHandler(db)

	rec := do(h.Intake, http.MethodPost, "/registration/intake", "/registration/intake",
		`{"agent":{"email":"new@example.com","firstName":"New","lastName":"Agent"},"agency":{"name":"Travel Pro","address":"123 Main St","city":"New York","country":"USA","zipCode":"10001"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, service.StageConfirmation, body["stage"])
	assert.Len(t, body["candidates"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookings_InvalidStatus(t *testing.T) {
	db, _ := newMockDB(t)
	rec := do(newAdminHandler(db).ListBookings, http.MethodGet, "/v1/bookings?status=lost", "/v1/bookings", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBookings_Page(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings b WHERE b.status = ?")).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM bookings b").
		WithArgs("pending", repository.BookingPageSize, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "agent_id", "hotel_id", "room_type_id", "guest_name", "arrival_date", "number_of_nights",
			"points", "your_ref", "hotel_ref", "status", "created_at", "updated_at", "hotel", "room", "agent",
		}).AddRow("b-1", "ag-1", "h-1", "rt-1", "John Smith", now, 3, 3, nil, nil, "pending", now, now,
			"Grand Hotel", "Standard Room", "John"))

	rec := do(newAdminHandler(db).ListBookings, http.MethodGet, "/v1/bookings?status=pending&offset=x", "/v1/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Nil(t, body["newOffset"])
	assert.EqualValues(t, 1, body["totalBookings"])
	assert.Len(t, body["bookings"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionBooking(t *testing.T) {
	t.Run("approve", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs("verified", "b-1", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		h := newAdminHandler(db)
		pc := &purgeCounter{}
		h.Cache = pc

		rec := do(h.ApproveBooking, http.MethodPost, "/v1/bookings/b-1/approve", "/v1/bookings/:id/approve", "", "id", "b-1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":"b-1","status":"verified"}`, rec.Body.String())
		assert.Equal(t, 1, pc.n)
	})

	t.Run("redeem pending conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs("redeemed", "b-1", "verified").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM bookings WHERE id = ?")).
			WithArgs("b-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))

		rec := do(newAdminHandler(db).RedeemBooking, http.MethodPost, "/v1/bookings/b-1/redeem", "/v1/bookings/:id/redeem", "", "id", "b-1")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec("UPDATE bookings SET status").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM bookings").WillReturnError(sql.ErrNoRows)

		rec := do(newAdminHandler(db).RejectBooking, http.MethodPost, "/v1/bookings/nope/reject", "/v1/bookings/:id/reject", "", "id", "nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

type recordingPublisher struct {
	queue    string
	event    any
	deadline time.Duration
	hasLimit bool
}

func (p *recordingPublisher) Publish(ctx context.Context, q string, event any) error {
	p.queue, p.event = q, event
	if dl, ok := ctx.Deadline(); ok {
		p.hasLimit = true
		p.deadline = time.Until(dl)
	}
	return errors.New("broker unavailable")
}

func TestTransitionBooking_PublishIsBounded(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs("redeemed", "b-7", "verified").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h := newAdminHandler(db)
	pub := &recordingPublisher{}
	h.Events = pub

	rec := do(h.RedeemBooking, http.MethodPost, "/v1/bookings/b-7/redeem", "/v1/bookings/:id/redeem", "", "id", "b-7")
	assert.Equal(t, http.StatusOK, rec.Code, "publish failures do not fail the transition")
	assert.Equal(t, queue.BookingStatusChangedQueue, pub.queue)
	assert.Equal(t, "redeemed", pub.event.(queue.BookingStatusChangedEvent).To)
	require.True(t, pub.hasLimit)
	assert.LessOrEqual(t, pub.deadline, service.PublishTimeout)
}

func TestCreateBooking_Validation(t *testing.T) {
	db, _ := newMockDB(t)
	h := newAdminHandler(db)

	rec := do(h.CreateBooking, http.MethodPost, "/v1/bookings", "/v1/bookings",
		`{"agentId":"ag-1","roomTypeId":"rt-1","guestName":"G","arrivalDate":"2026-02-30","numberOfNights":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.CreateBooking, http.MethodPost, "/v1/bookings", "/v1/bookings",
		`{"agentId":"ag-1","roomTypeId":"rt-1","guestName":"G","arrivalDate":"2026-02-01","numberOfNights":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBooking_ComputesPoints(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT hotel_id, points_factor FROM room_types WHERE id = ?")).
		WithArgs("rt-2").
		WillReturnRows(sqlmock.NewRows([]string{"hotel_id", "points_factor"}).AddRow("h-1", 1.5))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := do(newAdminHandler(db).CreateBooking, http.MethodPost, "/v1/bookings", "/v1/bookings",
		`{"agentId":"ag-1","roomTypeId":"rt-2","guestName":"Jane Doe","arrivalDate":"2026-02-01","numberOfNights":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 5, body["points"])
	assert.Equal(t, "h-1", body["hotelId"])
	assert.Equal(t, "pending", body["status"])
}

func TestSeed_AlreadySeeded(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM agents")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	rec := do(newAdminHandler(db).Seed, http.MethodPost, "/v1/admin/seed", "/v1/admin/seed", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgAlreadySeeded, decode(t, rec)["message"])
}

func TestClear(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	for _, table := range []string{"bookings", "room_types", "hotels", "agents", "agencies"} {
		mock.ExpectExec("DELETE FROM " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()
	h := newAdminHandler(db)
	pc := &purgeCounter{}
	h.Cache = pc

	rec := do(h.Clear, http.MethodPost, "/v1/admin/clear", "/v1/admin/clear", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgCleared, decode(t, rec)["message"])
	assert.Equal(t, 1, pc.n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListAgencies_Search(t *testing.T) {
	cols := []string{"id", "name", "address", "city", "country", "zip_code", "status", "created_at", "updated_at"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("zip and address", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE zip_code = ? AND LOWER(address) LIKE ?")).
			WithArgs("10001", "%main%", repository.AgencySearchLimit).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow("a-1", "Travel Pro Agency", "123 Main St", "New York", "USA", "10001", "active", now, now))

		rec := do(newAdminHandler(db).ListAgencies, http.MethodGet, "/v1/agencies?zip=10001&q=Main", "/v1/agencies", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode(t, rec)["items"], 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short query ignored", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`WHERE zip_code = \?\s+ORDER BY`).
			WithArgs("10001", repository.AgencySearchLimit).
			WillReturnRows(sqlmock.NewRows(cols))

		rec := do(newAdminHandler(db).ListAgencies, http.MethodGet, "/v1/agencies?zip=10001&q=M", "/v1/agencies", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query without zip", func(t *testing.T) {
		db, mock := newMockDB(t)
		rec := do(newAdminHandler(db).ListAgencies, http.MethodGet, "/v1/agencies?q=Main", "/v1/agencies", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no filter lists all", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM agencies ORDER BY name, id`).WillReturnRows(sqlmock.NewRows(cols))

		rec := do(newAdminHandler(db).ListAgencies, http.MethodGet, "/v1/agencies", "/v1/agencies", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
