package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

var fixedStart = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

func seededRegistry(t *testing.T) (*Registry, *parking.InMemoryStore) {
	t.Helper()
	store := parking.NewInMemoryStore().WithClock(func() time.Time { return fixedStart })
	if _, err := parking.Seed(context.Background(), store, parking.DefaultSeed()); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	reg, err := NewParkingRegistry(store)
	if err != nil {
		t.Fatalf("NewParkingRegistry returned error: %v", err)
	}
	return reg, store
}

type namedTool struct{ name string }

func (n namedTool) Spec() ToolSpec { return ToolSpec{Name: n.name} }

func (n namedTool) Invoke(context.Context, ToolRequest) (ToolResponse, error) {
	return ToolResponse{Content: n.name}, nil
}

func TestRegistryRegister(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	if err := reg.Register(nil); err == nil {
		t.Fatalf("expected error for nil tool")
	}
	if err := reg.Register(namedTool{name: "  "}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := reg.Register(namedTool{name: "Lookup"}); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := reg.Register(namedTool{name: "lookup"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, spec, ok := reg.Lookup("LOOKUP"); !ok || spec.Name != "Lookup" {
		t.Fatalf("expected case-insensitive lookup, got %v %+v", ok, spec)
	}
}

func TestParkingSpecsInRegistrationOrder(t *testing.T) {
	reg, _ := seededRegistry(t)
	specs := reg.Specs()
	want := []string{ListLocationsName, SearchSlotsName, BookSlotName}
	if len(specs) != len(want) {
		t.Fatalf("expected %d specs, got %d", len(want), len(specs))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Fatalf("spec %d: expected %s, got %s", i, name, specs[i].Name)
		}
		if specs[i].InputSchema == nil {
			t.Fatalf("spec %s has no input schema", name)
		}
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	reg, _ := seededRegistry(t)
	_, err := reg.Invoke(context.Background(), "CancelBooking", ToolRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if !strings.HasPrefix(Observation(err), "SchemaViolation") {
		t.Fatalf("unexpected observation: %q", Observation(err))
	}
}

func TestInvokeRejectsMissingRequiredArgument(t *testing.T) {
	reg, _ := seededRegistry(t)
	_, err := reg.Invoke(context.Background(), SearchSlotsName, ToolRequest{Arguments: map[string]any{
		"vehicle_type": "car",
		"location":     "Downtown Mall",
	}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestInvokeRejectsZeroDuration(t *testing.T) {
	reg, _ := seededRegistry(t)
	_, err := reg.Invoke(context.Background(), SearchSlotsName, ToolRequest{Arguments: map[string]any{
		"vehicle_type":   "car",
		"location":       "Downtown Mall",
		"duration_hours": 0,
	}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSearchCoercesNumericStringsAndEchoesDate(t *testing.T) {
	reg, _ := seededRegistry(t)
	resp, err := reg.Invoke(context.Background(), "searchparkingspots", ToolRequest{Arguments: map[string]any{
		"vehicle_type":   "Car",
		"location":       "downtown",
		"duration_hours": "2",
		"date":           "tomorrow",
		"slot_type":      nil,
	}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "Successfully found 2 parking spot(s)") {
		t.Fatalf("unexpected observation: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "date context: tomorrow") {
		t.Fatalf("expected date context in observation: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, "not checked against specific time slots") {
		t.Fatalf("expected availability caveat in observation: %q", resp.Content)
	}
	if !strings.Contains(resp.Content, `"price_per_hour":5`) || !strings.Contains(resp.Content, `"price_per_hour":4`) {
		t.Fatalf("expected both Downtown Mall car slots: %q", resp.Content)
	}
}

func TestSearchWithoutMatches(t *testing.T) {
	reg, _ := seededRegistry(t)
	resp, err := reg.Invoke(context.Background(), SearchSlotsName, ToolRequest{Arguments: map[string]any{
		"vehicle_type":   "truck",
		"location":       "Downtown Mall",
		"duration_hours": 1,
	}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "No parking spots found") {
		t.Fatalf("unexpected observation: %q", resp.Content)
	}
}

func TestListLocations(t *testing.T) {
	reg, _ := seededRegistry(t)
	resp, err := reg.Invoke(context.Background(), ListLocationsName, ToolRequest{Arguments: map[string]any{"vehicle_type": "car"}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(resp.Content, "Downtown Mall, Airport North, Tech Park West") {
		t.Fatalf("unexpected observation: %q", resp.Content)
	}
}

func TestListLocationsEmpty(t *testing.T) {
	store := parking.NewInMemoryStore()
	reg, err := NewParkingRegistry(store)
	if err != nil {
		t.Fatalf("NewParkingRegistry returned error: %v", err)
	}
	resp, err := reg.Invoke(context.Background(), ListLocationsName, ToolRequest{Arguments: map[string]any{"vehicle_type": "car"}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	want := "I couldn't find any general locations with available parking for a car right now."
	if resp.Content != want {
		t.Fatalf("expected %q, got %q", want, resp.Content)
	}
}

func TestBookSlotObservationAndSecondAttempt(t *testing.T) {
	reg, _ := seededRegistry(t)
	args := map[string]any{
		"slot_id":        float64(1),
		"user_id":        "session-1",
		"vehicle_number": "KA01AB1234",
		"duration_hours": float64(3),
	}
	resp, err := reg.Invoke(context.Background(), BookSlotName, ToolRequest{SessionID: "session-1", Arguments: args})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	want := "Booking successful! Your parking for vehicle KA01AB1234 at Slot ID 1 (Downtown Mall) is confirmed from " +
		"2025-05-20 09:00 AM UTC to 2025-05-20 12:00 PM UTC (3 hours). Total cost: $15.00. Your Booking ID is 1."
	if resp.Content != want {
		t.Fatalf("unexpected confirmation:\n got: %q\nwant: %q", resp.Content, want)
	}

	_, err = reg.Invoke(context.Background(), BookSlotName, ToolRequest{SessionID: "session-2", Arguments: args})
	if !errors.Is(err, parking.ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	var cerr *CapabilityError
	if !errors.As(err, &cerr) || cerr.Action != "book the parking spot" {
		t.Fatalf("expected CapabilityError naming the action, got %v", err)
	}
	obs := Observation(err)
	if !strings.Contains(obs, "book the parking spot") || !strings.Contains(obs, "search again") {
		t.Fatalf("unexpected observation: %q", obs)
	}
}

func TestOnlyBookingMutates(t *testing.T) {
	reg, _ := seededRegistry(t)
	if !reg.Mutates("bookparkingspot") {
		t.Fatalf("expected %s to be marked as state-changing", BookSlotName)
	}
	for _, name := range []string{ListLocationsName, SearchSlotsName, "missing"} {
		if reg.Mutates(name) {
			t.Fatalf("expected %s not to be marked as state-changing", name)
		}
	}
}

func TestOutcomeUnknownObservation(t *testing.T) {
	err := &CapabilityError{Tool: BookSlotName, Action: "book the parking spot", Err: ErrOutcomeUnknown}
	got := Observation(err)
	if !strings.Contains(got, "book the parking spot") || !strings.Contains(got, "may have gone through") {
		t.Fatalf("unexpected observation: %q", got)
	}
}

func TestBookSlotDefaultsUserToSession(t *testing.T) {
	reg, store := seededRegistry(t)
	_, err := reg.Invoke(context.Background(), BookSlotName, ToolRequest{SessionID: "session-9", Arguments: map[string]any{
		"slot_id":        "2",
		"user_id":        "",
		"vehicle_number": "MH12XY0001",
		"duration_hours": 1,
	}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	bookings, err := store.UserBookings(context.Background(), "session-9")
	if err != nil {
		t.Fatalf("UserBookings returned error: %v", err)
	}
	if len(bookings) != 1 || bookings[0].SlotID != 2 {
		t.Fatalf("expected one booking of slot 2, got %+v", bookings)
	}
}

func TestObservationForGenericFailure(t *testing.T) {
	err := &CapabilityError{Tool: SearchSlotsName, Action: "search for parking spots", Err: errors.New("connection refused")}
	want := "I encountered an issue trying to search for parking spots. Error: connection refused. Please try again or rephrase."
	if got := Observation(err); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	timeout := &CapabilityError{Tool: BookSlotName, Action: "book the parking spot", Err: context.DeadlineExceeded}
	if got := Observation(timeout); !strings.Contains(got, "timed out") {
		t.Fatalf("expected timeout observation, got %q", got)
	}
}
