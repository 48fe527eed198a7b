package parking

import (
	"context"
	"fmt"
)

// DefaultSeed is the demo inventory loaded into an empty store.
func DefaultSeed() []NewSlot {
	return []NewSlot{
		{Location: "Downtown Mall", SlotType: "covered", VehicleType: "car", PricePerHour: 5.0},
		{Location: "Downtown Mall", SlotType: "open", VehicleType: "car", PricePerHour: 4.0},
		{Location: "Downtown Mall", SlotType: "covered", VehicleType: "two-wheeler", PricePerHour: 2.0},
		{Location: "Airport North", SlotType: "long-term", VehicleType: "car", PricePerHour: 3.0},
		{Location: "Airport North", SlotType: "ev_charging", VehicleType: "car", PricePerHour: 6.0},
		{Location: "City Center Plaza", SlotType: "covered", VehicleType: "suv", PricePerHour: 7.0},
		{Location: "City Center Plaza", SlotType: "open", VehicleType: "two-wheeler", PricePerHour: 1.5},
		{Location: "Tech Park West", SlotType: "covered", VehicleType: "car", PricePerHour: 4.5},
		{Location: "Tech Park West", SlotType: "ev_charging", VehicleType: "car", PricePerHour: 6.5},
	}
}

// Seed inserts slots when the store is empty and reports how many were added.
func Seed(ctx context.Context, store Store, slots []NewSlot) (int, error) {
	count, err := store.CountSlots(ctx)
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	for i, slot := range slots {
		if _, err := store.CreateSlot(ctx, slot); err != nil {
			return i, fmt.Errorf("seed slot %d: %w", i, err)
		}
	}
	return len(slots), nil
}
