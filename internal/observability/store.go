package observability

import (
	"context"
	"errors"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

// Booking results recorded by InstrumentStore.
const (
	BookingConfirmed   = "confirmed"
	BookingUnavailable = "slot_unavailable"
	BookingInvalid     = "invalid"
	BookingError       = "error"
)

type instrumentedStore struct {
	parking.Store
	metrics *Metrics
}

// InstrumentStore counts booking attempts made through store, whether they
// come from the chat tools or the HTTP API.
func InstrumentStore(store parking.Store, m *Metrics) parking.Store {
	if m == nil {
		return store
	}
	return &instrumentedStore{Store: store, metrics: m}
}

func (s *instrumentedStore) BookSlot(ctx context.Context, req parking.BookingRequest) (parking.Booking, error) {
	b, err := s.Store.BookSlot(ctx, req)
	s.metrics.BookingAttempt(bookingResult(err))
	return b, err
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return BookingConfirmed
	case errors.Is(err, parking.ErrSlotUnavailable):
		return BookingUnavailable
	case errors.Is(err, parking.ErrInvalidDuration):
		return BookingInvalid
	default:
		return BookingError
	}
}
