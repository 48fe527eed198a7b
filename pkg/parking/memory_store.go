package parking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore implements Store for tests and single-process deployments.
// A single mutex serializes writers, which is what makes BookSlot atomic.
type InMemoryStore struct {
	mu            sync.RWMutex
	nextSlotID    int64
	nextBookingID int64
	slots         map[int64]Slot
	bookings      map[int64]Booking
	now           func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		slots:    make(map[int64]Slot),
		bookings: make(map[int64]Booking),
		now:      time.Now,
	}
}

// WithClock overrides the time source used for booking start times.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
	return s
}

func (s *InMemoryStore) ListLocations(_ context.Context, vehicleType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, slot := range s.sortedSlots() {
		if !slot.IsAvailable || !strings.EqualFold(slot.VehicleType, strings.TrimSpace(vehicleType)) {
			continue
		}
		if _, ok := seen[slot.Location]; ok {
			continue
		}
		seen[slot.Location] = struct{}{}
		out = append(out, slot.Location)
	}
	return out, nil
}

func (s *InMemoryStore) SearchSlots(_ context.Context, q SearchQuery) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Slot
	for _, slot := range s.sortedSlots() {
		if q.Matches(slot) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (s *InMemoryStore) BookSlot(_ context.Context, req BookingRequest) (Booking, error) {
	if err := req.Validate(); err != nil {
		return Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[req.SlotID]
	if !ok || !slot.IsAvailable {
		return Booking{}, ErrSlotUnavailable
	}
	booking := newBooking(slot, req, s.now())
	s.nextBookingID++
	booking.ID = s.nextBookingID

	slot.IsAvailable = false
	s.slots[slot.ID] = slot
	s.bookings[booking.ID] = booking
	return booking, nil
}

func (s *InMemoryStore) CreateSlot(_ context.Context, in NewSlot) (Slot, error) {
	if err := in.Validate(); err != nil {
		return Slot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSlotID++
	slot := Slot{
		ID:           s.nextSlotID,
		Location:     strings.TrimSpace(in.Location),
		SlotType:     strings.TrimSpace(in.SlotType),
		VehicleType:  strings.TrimSpace(in.VehicleType),
		PricePerHour: in.PricePerHour,
		IsAvailable:  in.available(),
	}
	s.slots[slot.ID] = slot
	return slot, nil
}

func (s *InMemoryStore) ListSlots(_ context.Context, skip, limit int) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedSlots()
	skip, limit = normalizePage(skip, limit)
	if skip >= len(all) {
		return []Slot{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]Slot(nil), all[skip:end]...), nil
}

func (s *InMemoryStore) CountSlots(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots), nil
}

func (s *InMemoryStore) GetBooking(_ context.Context, id int64) (Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, ErrNotFound
	}
	b.Slot = s.slots[b.SlotID]
	return b, nil
}

func (s *InMemoryStore) UserBookings(_ context.Context, userID string) ([]Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		b.Slot = s.slots[b.SlotID]
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (s *InMemoryStore) Close(context.Context) error { return nil }

// sortedSlots returns slots ordered by id. Callers hold the lock.
func (s *InMemoryStore) sortedSlots() []Slot {
	out := make([]Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

const defaultPageLimit = 10

func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	return skip, limit
}
