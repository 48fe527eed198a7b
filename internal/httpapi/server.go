package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/prince1katiyar/Parking-project/internal/config"
	"github.com/prince1katiyar/Parking-project/internal/observability"
	"github.com/prince1katiyar/Parking-project/pkg/parking"
	"github.com/prince1katiyar/Parking-project/pkg/runtime"
)

type Server struct {
	cfg     config.HTTPConfig
	runtime *runtime.Runtime
	store   parking.Store
	metrics *observability.Metrics
	logger  *zap.Logger
	limiter *ipLimiter
}

func New(cfg config.HTTPConfig, rt *runtime.Runtime, store parking.Store, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics("parking")
	}
	return &Server{
		cfg:     cfg,
		runtime: rt,
		store:   store,
		metrics: metrics,
		logger:  logger,
		limiter: newIPLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/v1/chat", s.handleChat)
		r.Post("/v1/sessions", s.handleCreateSession)
		r.Get("/v1/sessions", s.handleListSessions)

		r.Get("/v1/locations", s.handleListLocations)
		r.Get("/v1/slots", s.handleListSlots)
		r.Post("/v1/slots", s.handleCreateSlot)
		r.Post("/v1/slots/search", s.handleSearchSlots)
		r.Post("/v1/bookings", s.handleCreateBooking)
		r.Get("/v1/bookings/{id}", s.handleGetBooking)
		r.Get("/v1/users/{userID}/bookings", s.handleUserBookings)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": len(s.runtime.ActiveSessions()),
	})
}

// handleReady reports ready only while the slot store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.store.CountSlots(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "slot store is not reachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = s.runtime.NewSession("").ID()
	}

	reply := s.runtime.Invoke(r.Context(), sessionID, req.Message)
	respondJSON(w, http.StatusOK, chatResponse{SessionID: sessionID, Reply: reply})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	session := s.runtime.NewSession("")
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": session.ID()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.runtime.ActiveSessions()})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
