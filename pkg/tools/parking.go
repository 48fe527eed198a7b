package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

const (
	ListLocationsName = "GetAvailableLocationsForVehicle"
	SearchSlotsName   = "SearchParkingSpots"
	BookSlotName      = "BookParkingSpot"

	bookingTimeLayout = "2006-01-02 03:04 PM MST"
)

// NewParkingTools returns the three parking capabilities bound to store.
func NewParkingTools(store parking.Store) []Tool {
	return []Tool{
		&ListLocationsTool{Store: store},
		&SearchSlotsTool{Store: store},
		&BookSlotTool{Store: store},
	}
}

// NewParkingRegistry registers the parking capabilities in a fresh Registry.
func NewParkingRegistry(store parking.Store) (*Registry, error) {
	return NewRegistry(NewParkingTools(store)...)
}

func minimum(v float64) *float64 { return &v }

// ListLocationsTool lists locations that currently have a free slot for a vehicle type.
type ListLocationsTool struct {
	Store parking.Store
}

func (t *ListLocationsTool) Spec() ToolSpec {
	return ToolSpec{
		Name: ListLocationsName,
		Description: "Get the general locations where parking is currently available for a vehicle_type. " +
			"Use it when the user asks where they can park without naming a location. " +
			"Returns location names only, not individual slots.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"vehicle_type": {Type: "string", Description: "Type of vehicle, e.g. 'car', 'two-wheeler', 'suv'."},
			},
			Required: []string{"vehicle_type"},
		},
	}
}

func (t *ListLocationsTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	vehicleType := stringArg(req.Arguments, "vehicle_type")
	if vehicleType == "" {
		return ToolResponse{}, &ValidationError{Tool: ListLocationsName, Reason: "vehicle_type is required"}
	}
	locations, err := t.Store.ListLocations(ctx, vehicleType)
	if err != nil {
		return ToolResponse{}, &CapabilityError{Tool: ListLocationsName, Action: "get available locations", Err: err}
	}
	if len(locations) == 0 {
		return ToolResponse{Content: fmt.Sprintf("I couldn't find any general locations with available parking for a %s right now.", vehicleType)}, nil
	}
	return ToolResponse{
		Content: fmt.Sprintf("Based on current availability, you might find parking for a %s at the following locations: %s. "+
			"If you'd like to search at one of these, please tell me the specific location, the date, and for how long you need parking.",
			vehicleType, strings.Join(locations, ", ")),
	}, nil
}

// SearchSlotsTool finds available slots. The date argument is reported back
// as context but does not filter: availability is not time-sliced.
type SearchSlotsTool struct {
	Store parking.Store
}

func (t *SearchSlotsTool) Spec() ToolSpec {
	return ToolSpec{
		Name: SearchSlotsName,
		Description: "Search for available parking spots. Provide vehicle_type, location, duration_hours, and optionally slot_type and date " +
			"(e.g. 'today', 'YYYY-MM-DD'). Returns the matching spots or a message that none were found. " +
			"The search checks general availability, not time-slot clashes for the given date.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"vehicle_type":   {Type: "string", Description: "Type of vehicle, e.g. 'car', 'two-wheeler', 'suv'."},
				"location":       {Type: "string", Description: "Desired parking location, e.g. 'Downtown Mall', 'Airport North'."},
				"slot_type":      {Type: "string", Description: "Preferred slot type, e.g. 'covered', 'open', 'ev_charging'."},
				"date":           {Type: "string", Description: "Desired date, e.g. 'today', 'tomorrow', 'YYYY-MM-DD'."},
				"duration_hours": {Type: "integer", Minimum: minimum(1), Description: "Desired parking duration in hours."},
			},
			Required: []string{"vehicle_type", "location", "duration_hours"},
		},
	}
}

func (t *SearchSlotsTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	q := parking.SearchQuery{
		VehicleType:   stringArg(req.Arguments, "vehicle_type"),
		Location:      stringArg(req.Arguments, "location"),
		SlotType:      stringArg(req.Arguments, "slot_type"),
		Date:          stringArg(req.Arguments, "date"),
		DurationHours: intArg(req.Arguments, "duration_hours"),
	}
	if q.DurationHours < 1 {
		return ToolResponse{}, &ValidationError{Tool: SearchSlotsName, Reason: parking.ErrInvalidDuration.Error(), Err: parking.ErrInvalidDuration}
	}
	slots, err := t.Store.SearchSlots(ctx, q)
	if err != nil {
		return ToolResponse{}, &CapabilityError{Tool: SearchSlotsName, Action: "search for parking spots", Err: err}
	}
	if len(slots) == 0 {
		return ToolResponse{Content: "No parking spots found matching your criteria for the specified details. You can try a different location or vehicle type."}, nil
	}
	payload, err := json.Marshal(slots)
	if err != nil {
		return ToolResponse{}, &CapabilityError{Tool: SearchSlotsName, Action: "search for parking spots", Err: err}
	}
	dateContext := q.Date
	if dateContext == "" {
		dateContext = "any available day"
	}
	summary := fmt.Sprintf("Successfully found %d parking spot(s) generally matching criteria for %s at %s "+
		"(date context: %s, duration: %d hours). Availability is general and not checked against specific time slots for that date. "+
		"Details are in the following JSON. Please present these options to the user clearly:\n",
		len(slots), q.VehicleType, q.Location, dateContext, q.DurationHours)
	return ToolResponse{Content: summary + string(payload)}, nil
}

// BookSlotTool reserves a slot and reports the confirmed booking.
type BookSlotTool struct {
	Store parking.Store
}

func (t *BookSlotTool) Spec() ToolSpec {
	return ToolSpec{
		Name: BookSlotName,
		Description: "Book a specific parking spot after it has been found and the user has confirmed the slot_id and given their vehicle_number. " +
			"Requires slot_id, user_id (the session id), vehicle_number, and duration_hours from the search. The booking starts now.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"slot_id":        {Type: "integer", Description: "The ID of the parking slot to book."},
				"user_id":        {Type: "string", Description: "Identifier of the user; use the current session id."},
				"vehicle_number": {Type: "string", Description: "The vehicle's registration number."},
				"duration_hours": {Type: "integer", Minimum: minimum(1), Description: "Booking duration in hours, the same as the search that found the slot."},
			},
			Required: []string{"slot_id", "user_id", "vehicle_number", "duration_hours"},
		},
	}
}

func (t *BookSlotTool) Mutates() bool { return true }

func (t *BookSlotTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	booking := parking.BookingRequest{
		SlotID:        int64(intArg(req.Arguments, "slot_id")),
		UserID:        stringArg(req.Arguments, "user_id"),
		VehicleNumber: stringArg(req.Arguments, "vehicle_number"),
		DurationHours: intArg(req.Arguments, "duration_hours"),
	}
	if booking.UserID == "" {
		booking.UserID = req.SessionID
	}
	if err := booking.Validate(); err != nil {
		return ToolResponse{}, &ValidationError{Tool: BookSlotName, Reason: err.Error(), Err: err}
	}
	b, err := t.Store.BookSlot(ctx, booking)
	if err != nil {
		return ToolResponse{}, &CapabilityError{Tool: BookSlotName, Action: "book the parking spot", Err: err}
	}
	return ToolResponse{
		Content: fmt.Sprintf("Booking successful! Your parking for vehicle %s at Slot ID %d (%s) is confirmed from %s to %s (%d hours). "+
			"Total cost: $%.2f. Your Booking ID is %d.",
			b.VehicleNumber, b.Slot.ID, b.Slot.Location,
			b.StartTime.Format(bookingTimeLayout), b.EndTime.Format(bookingTimeLayout),
			b.DurationHours, b.TotalCost, b.ID),
		Metadata: map[string]string{"booking_id": fmt.Sprint(b.ID)},
	}, nil
}

func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func intArg(args map[string]any, key string) int {
	v, ok := args[key]
	if !ok {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}
