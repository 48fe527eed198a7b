package parking

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrSlotUnavailable is returned when a slot is missing or has already been booked.
	ErrSlotUnavailable = errors.New("parking slot is unavailable")
	// ErrNotFound is returned when a booking or slot lookup has no match.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDuration rejects bookings and searches for less than one hour.
	ErrInvalidDuration = errors.New("duration_hours must be at least 1")
)

// Slot is a single bookable parking space.
type Slot struct {
	ID           int64   `json:"id" bson:"_id"`
	Location     string  `json:"location" bson:"location"`
	SlotType     string  `json:"slot_type" bson:"slot_type"`
	VehicleType  string  `json:"vehicle_type" bson:"vehicle_type"`
	PricePerHour float64 `json:"price_per_hour" bson:"price_per_hour"`
	IsAvailable  bool    `json:"is_available" bson:"is_available"`
}

// NewSlot describes a slot to be created.
type NewSlot struct {
	Location     string  `json:"location"`
	SlotType     string  `json:"slot_type"`
	VehicleType  string  `json:"vehicle_type"`
	PricePerHour float64 `json:"price_per_hour"`
	// IsAvailable defaults to true when nil.
	IsAvailable *bool `json:"is_available,omitempty"`
}

func (n NewSlot) available() bool {
	return n.IsAvailable == nil || *n.IsAvailable
}

// Validate checks the fields every backend requires.
func (n NewSlot) Validate() error {
	switch {
	case strings.TrimSpace(n.Location) == "":
		return errors.New("location is required")
	case strings.TrimSpace(n.SlotType) == "":
		return errors.New("slot_type is required")
	case strings.TrimSpace(n.VehicleType) == "":
		return errors.New("vehicle_type is required")
	case n.PricePerHour < 0:
		return errors.New("price_per_hour must not be negative")
	}
	return nil
}

// Booking is a confirmed reservation of a slot.
type Booking struct {
	ID            int64     `json:"id" bson:"_id"`
	SlotID        int64     `json:"slot_id" bson:"slot_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	VehicleNumber string    `json:"vehicle_number" bson:"vehicle_number"`
	DurationHours int       `json:"duration_hours" bson:"duration_hours"`
	StartTime     time.Time `json:"start_time" bson:"start_time"`
	EndTime       time.Time `json:"end_time" bson:"end_time"`
	TotalCost     float64   `json:"total_cost" bson:"total_cost"`
	IsConfirmed   bool      `json:"is_confirmed" bson:"is_confirmed"`
	Slot          Slot      `json:"slot" bson:"-"`
}

// SearchQuery filters available slots. Date is carried for context only and
// never narrows the result: availability is general, not time-sliced.
type SearchQuery struct {
	VehicleType   string `json:"vehicle_type"`
	Location      string `json:"location"`
	SlotType      string `json:"slot_type,omitempty"`
	Date          string `json:"date,omitempty"`
	DurationHours int    `json:"duration_hours"`
}

// Matches reports whether slot satisfies the query.
func (q SearchQuery) Matches(slot Slot) bool {
	if !slot.IsAvailable {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(slot.VehicleType), strings.TrimSpace(q.VehicleType)) {
		return false
	}
	if !strings.Contains(strings.ToLower(slot.Location), strings.ToLower(strings.TrimSpace(q.Location))) {
		return false
	}
	if st := strings.TrimSpace(q.SlotType); st != "" && !strings.EqualFold(slot.SlotType, st) {
		return false
	}
	return true
}

// BookingRequest asks for a slot to be reserved starting now.
type BookingRequest struct {
	SlotID        int64  `json:"slot_id"`
	UserID        string `json:"user_id"`
	VehicleNumber string `json:"vehicle_number"`
	DurationHours int    `json:"duration_hours"`
}

// Validate checks the request before any store is touched.
func (r BookingRequest) Validate() error {
	if r.DurationHours < 1 {
		return ErrInvalidDuration
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.VehicleNumber) == "" {
		return errors.New("vehicle_number is required")
	}
	return nil
}

// newBooking derives the booking row for slot starting at start.
func newBooking(slot Slot, req BookingRequest, start time.Time) Booking {
	start = start.UTC()
	slot.IsAvailable = false
	return Booking{
		SlotID:        slot.ID,
		UserID:        strings.TrimSpace(req.UserID),
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		DurationHours: req.DurationHours,
		StartTime:     start,
		EndTime:       start.Add(time.Duration(req.DurationHours) * time.Hour),
		TotalCost:     slot.PricePerHour * float64(req.DurationHours),
		IsConfirmed:   true,
		Slot:          slot,
	}
}

// Store is the transactional slot/booking backend. BookSlot is the only
// operation that mutates availability and must resolve concurrent calls on the
// same slot to a single winner.
type Store interface {
	ListLocations(ctx context.Context, vehicleType string) ([]string, error)
	SearchSlots(ctx context.Context, q SearchQuery) ([]Slot, error)
	BookSlot(ctx context.Context, req BookingRequest) (Booking, error)

	CreateSlot(ctx context.Context, slot NewSlot) (Slot, error)
	ListSlots(ctx context.Context, skip, limit int) ([]Slot, error)
	CountSlots(ctx context.Context) (int, error)
	GetBooking(ctx context.Context, id int64) (Booking, error)
	UserBookings(ctx context.Context, userID string) ([]Booking, error)

	Close(ctx context.Context) error
}
