package parking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	n, err := Seed(context.Background(), store, DefaultSeed())
	require.NoError(t, err)
	require.Equal(t, len(DefaultSeed()), n)
	return store
}

func TestSearchSlotsDowntownMallCars(t *testing.T) {
	store := seededStore(t)

	slots, err := store.SearchSlots(context.Background(), SearchQuery{
		VehicleType:   "car",
		Location:      "Downtown Mall",
		DurationHours: 2,
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, "covered", slots[0].SlotType)
	assert.Equal(t, 5.0, slots[0].PricePerHour)
	assert.Equal(t, "open", slots[1].SlotType)
	assert.Equal(t, 4.0, slots[1].PricePerHour)
	for _, s := range slots {
		assert.True(t, s.IsAvailable)
		assert.Equal(t, "Downtown Mall", s.Location)
	}
}

func TestSearchSlotsMatchingRules(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		query SearchQuery
		want  int
	}{
		{name: "vehicle type is case-insensitive", query: SearchQuery{VehicleType: "CAR", Location: "downtown"}, want: 2},
		{name: "location is a substring", query: SearchQuery{VehicleType: "car", Location: "park"}, want: 2},
		{name: "slot type narrows", query: SearchQuery{VehicleType: "car", Location: "Airport", SlotType: "EV_Charging"}, want: 1},
		{name: "vehicle type is not a substring", query: SearchQuery{VehicleType: "ca", Location: "Downtown"}, want: 0},
		{name: "date never filters", query: SearchQuery{VehicleType: "suv", Location: "City", Date: "1999-01-01"}, want: 1},
		{name: "no match is empty", query: SearchQuery{VehicleType: "truck", Location: "Downtown"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.SearchSlots(ctx, tt.query)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestBookSlotCostAndSecondAttempt(t *testing.T) {
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	store := seededStore(t).WithClock(func() time.Time { return start })
	ctx := context.Background()

	booking, err := store.BookSlot(ctx, BookingRequest{SlotID: 1, UserID: "session-1", VehicleNumber: "KA01AB1234", DurationHours: 3})
	require.NoError(t, err)
	assert.Equal(t, 15.0, booking.TotalCost)
	assert.Equal(t, 3*time.Hour, booking.EndTime.Sub(booking.StartTime))
	assert.True(t, booking.IsConfirmed)
	assert.False(t, booking.Slot.IsAvailable)
	assert.Equal(t, start, booking.StartTime)

	_, err = store.BookSlot(ctx, BookingRequest{SlotID: 1, UserID: "session-2", VehicleNumber: "KA02", DurationHours: 1})
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	slots, err := store.SearchSlots(ctx, SearchQuery{VehicleType: "car", Location: "Downtown Mall"})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, int64(2), slots[0].ID)
}

func TestBookSlotMissingSlot(t *testing.T) {
	store := seededStore(t)
	_, err := store.BookSlot(context.Background(), BookingRequest{SlotID: 999, UserID: "u", VehicleNumber: "X", DurationHours: 1})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookSlotRejectsInvalidDuration(t *testing.T) {
	store := seededStore(t)
	_, err := store.BookSlot(context.Background(), BookingRequest{SlotID: 1, UserID: "u", VehicleNumber: "X", DurationHours: 0})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestConcurrentBookingsSingleWinner(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	const racers = 32
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		wins        int
		unavailable int
	)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := store.BookSlot(ctx, BookingRequest{SlotID: 4, UserID: "racer", VehicleNumber: "V", DurationHours: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, unavailable)
}

func TestListLocations(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	locs, err := store.ListLocations(ctx, "Car")
	require.NoError(t, err)
	assert.Equal(t, []string{"Downtown Mall", "Airport North", "Tech Park West"}, locs)

	empty := NewInMemoryStore()
	_, err = empty.CreateSlot(ctx, NewSlot{Location: "Lot A", SlotType: "open", VehicleType: "two-wheeler", PricePerHour: 1})
	require.NoError(t, err)
	locs, err = empty.ListLocations(ctx, "car")
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestListLocationsSkipsBookedOutLocations(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	slot, err := store.CreateSlot(ctx, NewSlot{Location: "Lot A", SlotType: "open", VehicleType: "car", PricePerHour: 2})
	require.NoError(t, err)
	_, err = store.BookSlot(ctx, BookingRequest{SlotID: slot.ID, UserID: "u", VehicleNumber: "V", DurationHours: 1})
	require.NoError(t, err)

	locs, err := store.ListLocations(ctx, "car")
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestUserBookingsNewestFirst(t *testing.T) {
	clock := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	store := seededStore(t).WithClock(func() time.Time {
		clock = clock.Add(time.Hour)
		return clock
	})
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		_, err := store.BookSlot(ctx, BookingRequest{SlotID: id, UserID: "alice", VehicleNumber: "A1", DurationHours: 1})
		require.NoError(t, err)
	}
	_, err := store.BookSlot(ctx, BookingRequest{SlotID: 4, UserID: "bob", VehicleNumber: "B1", DurationHours: 1})
	require.NoError(t, err)

	got, err := store.UserBookings(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].SlotID)
	assert.Equal(t, int64(1), got[2].SlotID)
	assert.Equal(t, "Downtown Mall", got[0].Slot.Location)
}

func TestGetBookingNotFound(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.GetBooking(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSlotsPaging(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	page, err := store.ListSlots(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 9)

	page, err = store.ListSlots(ctx, 7, 5)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(8), page[0].ID)

	page, err = store.ListSlots(ctx, 50, 5)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestSeedSkipsNonEmptyStore(t *testing.T) {
	store := seededStore(t)
	n, err := Seed(context.Background(), store, DefaultSeed())
	require.NoError(t, err)
	assert.Zero(t, n)
	count, err := store.CountSlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, count)
}

func TestCreateSlotValidation(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.CreateSlot(context.Background(), NewSlot{SlotType: "open", VehicleType: "car"})
	assert.Error(t, err)

	unavailable := false
	slot, err := store.CreateSlot(context.Background(), NewSlot{Location: "X", SlotType: "open", VehicleType: "car", IsAvailable: &unavailable})
	require.NoError(t, err)
	assert.False(t, slot.IsAvailable)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "cassandra"})
	assert.Error(t, err)

	store, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, store)
}
