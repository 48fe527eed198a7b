package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/pkg/parking"
)

func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	vehicleType := strings.TrimSpace(r.URL.Query().Get("vehicle_type"))
	if vehicleType == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "vehicle_type is required")
		return
	}
	locations, err := s.store.ListLocations(r.Context(), vehicleType)
	if err != nil {
		s.storeError(w, "list locations", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"locations": nonNil(locations)})
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	slots, err := s.store.ListSlots(r.Context(), skip, limit)
	if err != nil {
		s.storeError(w, "list slots", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": nonNil(slots)})
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req parking.NewSlot
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	slot, err := s.store.CreateSlot(r.Context(), req)
	if err != nil {
		s.storeError(w, "create slot", err)
		return
	}
	respondJSON(w, http.StatusCreated, slot)
}

func (s *Server) handleSearchSlots(w http.ResponseWriter, r *http.Request) {
	var q parking.SearchQuery
	if err := decodeJSON(r, &q); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	switch {
	case strings.TrimSpace(q.VehicleType) == "":
		respondError(w, http.StatusBadRequest, "invalid_request", "vehicle_type is required")
		return
	case strings.TrimSpace(q.Location) == "":
		respondError(w, http.StatusBadRequest, "invalid_request", "location is required")
		return
	case q.DurationHours < 1:
		respondError(w, http.StatusBadRequest, "invalid_request", parking.ErrInvalidDuration.Error())
		return
	}
	slots, err := s.store.SearchSlots(r.Context(), q)
	if err != nil {
		s.storeError(w, "search slots", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"slots": nonNil(slots)})
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req parking.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	booking, err := s.store.BookSlot(r.Context(), req)
	if err != nil {
		s.storeError(w, "book slot", err)
		return
	}
	respondJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "booking id must be an integer")
		return
	}
	booking, err := s.store.GetBooking(r.Context(), id)
	if err != nil {
		s.storeError(w, "get booking", err)
		return
	}
	respondJSON(w, http.StatusOK, booking)
}

func (s *Server) handleUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	bookings, err := s.store.UserBookings(r.Context(), userID)
	if err != nil {
		s.storeError(w, "list user bookings", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

// storeError maps store sentinels to status codes and hides everything else.
func (s *Server) storeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, parking.ErrSlotUnavailable):
		respondError(w, http.StatusConflict, "slot_unavailable", "the slot is no longer available or does not exist")
	case errors.Is(err, parking.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, parking.ErrInvalidDuration):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("store request failed", zap.String("action", action), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not "+action)
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
