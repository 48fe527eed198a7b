package parking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects and bootstraps the slot and booking tables.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initParkingSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func initParkingSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS parking_slots (
			id BIGSERIAL PRIMARY KEY,
			location TEXT NOT NULL,
			slot_type TEXT NOT NULL,
			vehicle_type TEXT NOT NULL,
			price_per_hour DOUBLE PRECISION NOT NULL,
			is_available BOOLEAN NOT NULL DEFAULT TRUE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_parking_slots_location ON parking_slots (location);`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id BIGSERIAL PRIMARY KEY,
			slot_id BIGINT NOT NULL REFERENCES parking_slots(id),
			user_id TEXT NOT NULL,
			vehicle_number TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			duration_hours INTEGER NOT NULL,
			total_cost DOUBLE PRECISION NOT NULL,
			is_confirmed BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings (user_id);`,
		// one confirmed booking per slot, enforced by the database as well
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_confirmed_slot ON bookings (slot_id) WHERE is_confirmed;`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const slotColumns = `id, location, slot_type, vehicle_type, price_per_hour, is_available`

func scanSlot(row pgx.Row) (Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.Location, &s.SlotType, &s.VehicleType, &s.PricePerHour, &s.IsAvailable)
	return s, err
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()
	var out []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListLocations(ctx context.Context, vehicleType string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT location FROM parking_slots
		WHERE is_available AND lower(vehicle_type) = lower($1)
		ORDER BY location`, strings.TrimSpace(vehicleType))
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SearchSlots(ctx context.Context, q SearchQuery) ([]Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots
		WHERE is_available
		  AND lower(vehicle_type) = lower($1)
		  AND location ILIKE '%' || $2 || '%'`
	args := []any{strings.TrimSpace(q.VehicleType), escapeLike(strings.TrimSpace(q.Location))}
	if st := strings.TrimSpace(q.SlotType); st != "" {
		query += ` AND lower(slot_type) = lower($3)`
		args = append(args, st)
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search slots: %w", err)
	}
	return collectSlots(rows)
}

// BookSlot flips availability with a conditional update inside the same
// transaction that inserts the booking. Losing racers match zero rows.
func (p *PostgresStore) BookSlot(ctx context.Context, req BookingRequest) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	slot, err := scanSlot(tx.QueryRow(ctx, `
		UPDATE parking_slots SET is_available = FALSE
		WHERE id = $1 AND is_available
		RETURNING `+slotColumns, req.SlotID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrSlotUnavailable
	}
	if err != nil {
		return Booking{}, fmt.Errorf("claim slot %d: %w", req.SlotID, err)
	}

	booking := newBooking(slot, req, p.now())
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (slot_id, user_id, vehicle_number, start_time, end_time, duration_hours, total_cost, is_confirmed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		booking.SlotID, booking.UserID, booking.VehicleNumber, booking.StartTime, booking.EndTime,
		booking.DurationHours, booking.TotalCost, booking.IsConfirmed,
	).Scan(&booking.ID)
	if err != nil {
		return Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Booking{}, fmt.Errorf("commit booking: %w", err)
	}
	return booking, nil
}

func (p *PostgresStore) CreateSlot(ctx context.Context, in NewSlot) (Slot, error) {
	if err := in.Validate(); err != nil {
		return Slot{}, err
	}
	slot, err := scanSlot(p.pool.QueryRow(ctx, `
		INSERT INTO parking_slots (location, slot_type, vehicle_type, price_per_hour, is_available)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+slotColumns,
		strings.TrimSpace(in.Location), strings.TrimSpace(in.SlotType), strings.TrimSpace(in.VehicleType),
		in.PricePerHour, in.available()))
	if err != nil {
		return Slot{}, fmt.Errorf("create slot: %w", err)
	}
	return slot, nil
}

func (p *PostgresStore) ListSlots(ctx context.Context, skip, limit int) ([]Slot, error) {
	skip, limit = normalizePage(skip, limit)
	rows, err := p.pool.Query(ctx, `SELECT `+slotColumns+` FROM parking_slots ORDER BY id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return collectSlots(rows)
}

func (p *PostgresStore) CountSlots(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM parking_slots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return n, nil
}

const bookingSelect = `
	SELECT b.id, b.slot_id, b.user_id, b.vehicle_number, b.start_time, b.end_time, b.duration_hours,
	       b.total_cost, b.is_confirmed,
	       s.id, s.location, s.slot_type, s.vehicle_type, s.price_per_hour, s.is_available
	FROM bookings b JOIN parking_slots s ON s.id = b.slot_id`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.UserID, &b.VehicleNumber, &b.StartTime, &b.EndTime, &b.DurationHours,
		&b.TotalCost, &b.IsConfirmed,
		&b.Slot.ID, &b.Slot.Location, &b.Slot.SlotType, &b.Slot.VehicleType, &b.Slot.PricePerHour, &b.Slot.IsAvailable)
	return b, err
}

func (p *PostgresStore) GetBooking(ctx context.Context, id int64) (Booking, error) {
	b, err := scanBooking(p.pool.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

func (p *PostgresStore) UserBookings(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := p.pool.Query(ctx, bookingSelect+` WHERE b.user_id = $1 ORDER BY b.start_time DESC, b.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("user bookings: %w", err)
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close(context.Context) error {
	if p == nil || p.pool == nil {
		return nil
	}
	p.pool.Close()
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
