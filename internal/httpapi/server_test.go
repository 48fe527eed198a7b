package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prince1katiyar/Parking-project/internal/config"
	"github.com/prince1katiyar/Parking-project/internal/observability"
	"github.com/prince1katiyar/Parking-project/pkg/models"
	"github.com/prince1katiyar/Parking-project/pkg/parking"
	"github.com/prince1katiyar/Parking-project/pkg/runtime"
	"github.com/prince1katiyar/Parking-project/pkg/tools"
)

type fixture struct {
	server  *httptest.Server
	store   *parking.InMemoryStore
	decider *models.ScriptedDecider
	metrics *observability.Metrics
}

func newFixture(t *testing.T, cfg config.HTTPConfig) *fixture {
	t.Helper()
	ctx := context.Background()

	store := parking.NewInMemoryStore()
	_, err := parking.Seed(ctx, store, parking.DefaultSeed())
	require.NoError(t, err)

	metrics := observability.NewMetrics("test")
	instrumented := observability.InstrumentStore(store, metrics)
	registry, err := tools.NewParkingRegistry(instrumented)
	require.NoError(t, err)

	decider := models.NewScriptedDecider()
	rt, err := runtime.New(ctx,
		runtime.WithDecider(runtime.StaticDecider(decider)),
		runtime.WithRegistry(registry),
		runtime.WithObserver(metrics),
	)
	require.NoError(t, err)

	srv := New(cfg, rt, instrumented, metrics, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, store: store, decider: decider, metrics: metrics}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res.StatusCode, out
}

func TestChatCreatesSessionAndReplies(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.decider.Push(models.Reply("Which vehicle are you parking?"), models.Reply("Great, a **car**."))

	status, body := f.do(t, http.MethodPost, "/v1/chat", map[string]string{"message": "I need parking"})
	require.Equal(t, http.StatusOK, status)
	sessionID, _ := body["session_id"].(string)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, "Which vehicle are you parking?", body["reply"])

	status, body = f.do(t, http.MethodPost, "/v1/chat", map[string]string{"session_id": sessionID, "message": "a car"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, sessionID, body["session_id"])
	assert.Equal(t, "Great, a car.", body["reply"])

	convs := f.decider.Conversations()
	require.Len(t, convs, 2)
	assert.NotEmpty(t, convs[1].History, "second turn should see stored memory")
}

func TestChatRunsToolsThroughRegistry(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	f.decider.Push(
		models.Call(tools.SearchSlotsName, map[string]any{
			"vehicle_type":   "car",
			"location":       "Downtown Mall",
			"duration_hours": 2,
		}),
		models.Reply("I found two slots at Downtown Mall."),
	)

	status, body := f.do(t, http.MethodPost, "/v1/chat", map[string]string{"session_id": "driver-1", "message": "car parking at Downtown Mall for 2 hours"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "I found two slots at Downtown Mall.", body["reply"])

	convs := f.decider.Conversations()
	require.Len(t, convs, 2)
	require.Len(t, convs[1].Steps, 1)
	assert.Contains(t, convs[1].Steps[0].Observation, "Successfully found 2 parking spot(s)")
	assert.Contains(t, convs[1].Steps[0].Observation, `"price_per_hour":4`)
}

func TestChatRejectsBadInput(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	status, body := f.do(t, http.MethodPost, "/v1/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_request", body["code"])

	status, _ = f.do(t, http.MethodPost, "/v1/chat", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/v1/chat", map[string]string{"msg": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSessionsEndpoints(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	status, body := f.do(t, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)

	status, body = f.do(t, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{id}, body["sessions"])
}

func TestLocationsAndSearch(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	status, body := f.do(t, http.MethodGet, "/v1/locations?vehicle_type=car", nil)
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, []any{"Downtown Mall", "Airport North", "Tech Park West"}, body["locations"])

	status, body = f.do(t, http.MethodGet, "/v1/locations?vehicle_type=truck", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["locations"])

	status, _ = f.do(t, http.MethodGet, "/v1/locations", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPost, "/v1/slots/search", parking.SearchQuery{
		VehicleType: "car", Location: "downtown", DurationHours: 2, Date: "2025-06-01",
	})
	require.Equal(t, http.StatusOK, status)
	slots, _ := body["slots"].([]any)
	require.Len(t, slots, 2)
	first := slots[0].(map[string]any)
	assert.Equal(t, "covered", first["slot_type"])
	assert.Equal(t, 5.0, first["price_per_hour"])

	status, _ = f.do(t, http.MethodPost, "/v1/slots/search", parking.SearchQuery{VehicleType: "car", Location: "Downtown Mall"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestBookingLifecycle(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})
	req := parking.BookingRequest{SlotID: 1, UserID: "u-7", VehicleNumber: "KA01AB1234", DurationHours: 3}

	status, body := f.do(t, http.MethodPost, "/v1/bookings", req)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 15.0, body["total_cost"])
	assert.Equal(t, true, body["is_confirmed"])
	bookingID := body["id"].(float64)

	status, body = f.do(t, http.MethodPost, "/v1/bookings", req)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "slot_unavailable", body["code"])

	status, body = f.do(t, http.MethodGet, "/v1/bookings/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, bookingID, body["id"])
	slot := body["slot"].(map[string]any)
	assert.Equal(t, "Downtown Mall", slot["location"])
	assert.Equal(t, false, slot["is_available"])

	status, body = f.do(t, http.MethodGet, "/v1/bookings/99", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	status, _ = f.do(t, http.MethodGet, "/v1/bookings/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/v1/users/u-7/bookings", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["bookings"], 1)

	status, _ = f.do(t, http.MethodPost, "/v1/bookings", parking.BookingRequest{SlotID: 2, UserID: "u-7", VehicleNumber: "X", DurationHours: 0})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSlotsCRUD(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	status, body := f.do(t, http.MethodPost, "/v1/slots", parking.NewSlot{
		Location: "Harbour Front", SlotType: "open", VehicleType: "car", PricePerHour: 2.5,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 10.0, body["id"])
	assert.Equal(t, true, body["is_available"])

	status, _ = f.do(t, http.MethodPost, "/v1/slots", parking.NewSlot{SlotType: "open", VehicleType: "car"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodGet, "/v1/slots?skip=8&limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["slots"], 2)

	status, _ = f.do(t, http.MethodGet, "/v1/slots?skip=-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{})

	status, body := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	res, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `route="/healthz"`)
}

func TestRateLimitPerClient(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{RateLimit: 0.001, RateBurst: 2})

	for i := 0; i < 2; i++ {
		status, _ := f.do(t, http.MethodGet, "/v1/sessions", nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, body := f.do(t, http.MethodGet, "/v1/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["code"])

	status, _ = f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status, "health checks are not rate limited")
}

func (f *fixture) getFrom(t *testing.T, path, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()
	return res.StatusCode
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{RateLimit: 0.001, RateBurst: 1})

	require.Equal(t, http.StatusOK, f.getFrom(t, "/v1/sessions", "203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, f.getFrom(t, "/v1/sessions", "198.51.100.9"),
		"a rotated X-Forwarded-For must not reset the limit")
}

func TestRateLimitUsesForwardedForBehindTrustedProxy(t *testing.T) {
	f := newFixture(t, config.HTTPConfig{RateLimit: 0.001, RateBurst: 1, TrustProxyHeaders: true})

	require.Equal(t, http.StatusOK, f.getFrom(t, "/v1/sessions", "203.0.113.7"))
	require.Equal(t, http.StatusOK, f.getFrom(t, "/v1/sessions", "198.51.100.9"))
	assert.Equal(t, http.StatusTooManyRequests, f.getFrom(t, "/v1/sessions", "203.0.113.7"))
}
