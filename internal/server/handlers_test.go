package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/parking"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

type testAPI struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	clock   *testClock
}

func newTestAPI(t *testing.T, opts ...parking.Option) *testAPI {
	t.Helper()
	clock := &testClock{now: testEpoch}
	telemetry := parking.NewLocalTelemetryProvider(nil)

	h := NewHandler(telemetry, "parking-facility-test", append([]parking.Option{parking.WithClock(clock)}, opts...)...)
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewFacilityCollector(h.snapshot))

	return &testAPI{t: t, handler: h, router: NewRouter(h, reg), clock: clock}
}

func (a *testAPI) do(method, path string, body any) (*httptest.ResponseRecorder, Response) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// data re-decodes the generic Data field into out.
func data(t *testing.T, resp Response, out any) {
	t.Helper()
	buf, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(buf, out))
}

func (a *testAPI) createFacility(layout LayoutRequest) {
	a.t.Helper()
	rec, _ := a.do(http.MethodPost, "/api/facility/", CreateFacilityRequest{Name: "Test", Layout: &layout})
	require.Equal(a.t, http.StatusCreated, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "parking-facility-test", health.Service)
	assert.Equal(t, "req-123", health.Meta.RequestID)
}

func TestRequestIDGenerated(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(http.MethodGet, "/health", nil)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestEndpointsRequireFacility(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/facility/park"},
		{http.MethodPost, "/api/facility/leave"},
		{http.MethodGet, "/api/facility/status"},
		{http.MethodGet, "/api/facility/stats"},
		{http.MethodGet, "/api/facility/locate/KA01"},
		{http.MethodGet, "/api/facility/tickets"},
	} {
		rec, resp := api.do(tc.method, tc.path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
		assert.Equal(t, errFacilityNotCreated, resp.Error, tc.path)
	}
}

func TestCreateFacility(t *testing.T) {
	api := newTestAPI(t)

	rec, resp := api.do(http.MethodPost, "/api/facility/", CreateFacilityRequest{Name: "Downtown", Address: "1 Main St", Capacity: 10})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	var snap struct {
		Name     string `json:"name"`
		Address  string `json:"address"`
		Capacity int    `json:"capacity"`
		Sizes    []struct {
			Size  string `json:"size"`
			Total int    `json:"total"`
		} `json:"sizes"`
	}
	data(t, resp, &snap)
	assert.Equal(t, "Downtown", snap.Name)
	assert.Equal(t, "1 Main St", snap.Address)
	assert.Equal(t, 10, snap.Capacity)
	require.Len(t, snap.Sizes, 3)
	assert.Equal(t, "compact", snap.Sizes[0].Size)
	assert.Equal(t, 4, snap.Sizes[0].Total)

	rec, _ = api.do(http.MethodPost, "/api/facility/", CreateFacilityRequest{Capacity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/", CreateFacilityRequest{Layout: &LayoutRequest{Compact: -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/facility/", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	api.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestParkLocateLeave(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Compact: 1, Regular: 1, Large: 1})

	rec, resp := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "car", Plate: "ka01hh1234", Color: "White"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ticket TicketResponse
	data(t, resp, &ticket)
	assert.Equal(t, "TKT-000001", ticket.ID)
	assert.Equal(t, "KA01HH1234", ticket.Vehicle.Plate)
	assert.Equal(t, 2, ticket.SpotNumber)
	assert.Equal(t, "regular", ticket.SpotSize)
	assert.Equal(t, "active", ticket.State)

	rec, resp = api.do(http.MethodGet, "/api/facility/locate/KA01HH1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var spot SpotResponse
	data(t, resp, &spot)
	assert.Equal(t, 2, spot.Number)
	assert.Equal(t, "occupied", spot.Status)
	require.NotNil(t, spot.Vehicle)
	assert.Equal(t, "White", spot.Vehicle.Color)

	api.clock.now = api.clock.now.Add(90 * time.Minute)

	rec, resp = api.do(http.MethodGet, "/api/facility/tickets?state=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []TicketResponse
	data(t, resp, &active)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Hours)
	assert.Equal(t, 4.0, active[0].Fee)

	rec, resp = api.do(http.MethodPost, "/api/facility/leave", PlateRequest{Plate: "KA01HH1234"})
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &ticket)
	assert.Equal(t, "completed", ticket.State)
	assert.Equal(t, 2, ticket.Hours)
	assert.Equal(t, 4.0, ticket.Fee)
	assert.True(t, ticket.Paid)
	require.NotNil(t, ticket.ExitTime)

	rec, _ = api.do(http.MethodGet, "/api/facility/locate/KA01HH1234", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/leave", PlateRequest{Plate: "KA01HH1234"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParkErrors(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Regular: 1})

	tests := []struct {
		name string
		req  ParkVehicleRequest
		want int
	}{
		{"unknown type", ParkVehicleRequest{Type: "bus", Plate: "B1"}, http.StatusBadRequest},
		{"empty plate", ParkVehicleRequest{Type: "car", Plate: "  "}, http.StatusBadRequest},
		{"truck without weight", ParkVehicleRequest{Type: "truck", Plate: "T1"}, http.StatusBadRequest},
		{"first car", ParkVehicleRequest{Type: "car", Plate: "C1"}, http.StatusCreated},
		{"same car again", ParkVehicleRequest{Type: "car", Plate: "c1"}, http.StatusConflict},
		{"no room", ParkVehicleRequest{Type: "car", Plate: "C2"}, http.StatusServiceUnavailable},
		{"no large spot", ParkVehicleRequest{Type: "truck", Plate: "T1", WeightTons: 5}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := api.do(http.MethodPost, "/api/facility/park", tt.req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestLeavePaymentDeclined(t *testing.T) {
	payments := parking.NewSimulatedProcessor()
	payments.SetDecline(true)
	api := newTestAPI(t, parking.WithPaymentProcessor(payments))
	api.createFacility(LayoutRequest{Regular: 1})

	rec, _ := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "car", Plate: "C1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	api.clock.now = api.clock.now.Add(time.Hour)

	rec, resp := api.do(http.MethodPost, "/api/facility/leave", PlateRequest{Plate: "C1"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = api.do(http.MethodGet, "/api/facility/locate/C1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	payments.SetDecline(false)
	rec, _ = api.do(http.MethodPost, "/api/facility/leave", PlateRequest{Plate: "C1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInvoiceAndSettle(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Compact: 1})

	rec, _ := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "motorcycle", Plate: "M1", Sidecar: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	api.clock.now = api.clock.now.Add(2 * time.Hour)

	rec, resp := api.do(http.MethodPost, "/api/facility/invoice", PlateRequest{Plate: "M1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var ticket TicketResponse
	data(t, resp, &ticket)
	assert.Equal(t, 3.0, ticket.Fee)
	assert.False(t, ticket.Paid)

	rec, resp = api.do(http.MethodGet, "/api/facility/tickets/"+ticket.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &ticket)
	assert.Equal(t, "completed", ticket.State)

	rec, _ = api.do(http.MethodPost, fmt.Sprintf("/api/facility/tickets/%s/settle", ticket.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodPost, fmt.Sprintf("/api/facility/tickets/%s/settle", ticket.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/facility/tickets/TKT-424242", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = api.do(http.MethodGet, "/api/facility/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Revenue          float64 `json:"revenue"`
		Unpaid           float64 `json:"unpaid"`
		CompletedTickets int     `json:"completed_tickets"`
	}
	data(t, resp, &snap)
	assert.Equal(t, 3.0, snap.Revenue)
	assert.Equal(t, 0.0, snap.Unpaid)
	assert.Equal(t, 1, snap.CompletedTickets)
}

func TestCreateFacilityRejectsOversize(t *testing.T) {
	api := newTestAPI(t, parking.WithMaxCapacity(50))

	for _, req := range []CreateFacilityRequest{
		{Capacity: 1_000_000_000},
		{Capacity: 51},
		{Layout: &LayoutRequest{Compact: math.MaxInt, Regular: 1}},
		{Layout: &LayoutRequest{Compact: 30, Regular: 30}},
	} {
		rec, resp := api.do(http.MethodPost, "/api/facility/", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%+v", req)
		assert.False(t, resp.Success)
	}

	rec, _ := api.do(http.MethodGet, "/api/facility/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no facility was installed")

	rec, _ = api.do(http.MethodPost, "/api/facility/", CreateFacilityRequest{Capacity: 50})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdjustedSettleAndRefund(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Compact: 1})

	rec, _ := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "motorcycle", Plate: "M1", Sidecar: true})
	require.Equal(t, http.StatusCreated, rec.Code)
	api.clock.now = api.clock.now.Add(2 * time.Hour)

	rec, resp := api.do(http.MethodPost, "/api/facility/invoice", PlateRequest{Plate: "M1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var ticket TicketResponse
	data(t, resp, &ticket)
	settle := fmt.Sprintf("/api/facility/tickets/%s/settle", ticket.ID)
	refund := fmt.Sprintf("/api/facility/tickets/%s/refund", ticket.ID)

	rec, _ = api.do(http.MethodPost, refund, RefundRequest{Amount: 1})
	assert.Equal(t, http.StatusConflict, rec.Code, "unpaid tickets cannot be refunded")

	rec, _ = api.do(http.MethodPost, settle, SettleRequest{DiscountPercent: 150})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = api.do(http.MethodPost, settle, SettleRequest{DiscountPercent: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &ticket)
	assert.Equal(t, 3.0, ticket.Fee)
	assert.Equal(t, 2.7, ticket.AmountPaid)

	rec, resp = api.do(http.MethodPost, refund, RefundRequest{Amount: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &ticket)
	assert.Equal(t, 1.0, ticket.Refunded)

	rec, _ = api.do(http.MethodPost, refund, RefundRequest{Amount: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = api.do(http.MethodPost, refund, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/facility/tickets/TKT-424242/refund", RefundRequest{Amount: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metrics := httptest.NewRecorder()
	api.router.ServeHTTP(metrics, req)
	assert.Contains(t, metrics.Body.String(), `parking_facility_revenue_total{facility="Test"} 2.7`)
	assert.Contains(t, metrics.Body.String(), `parking_facility_refunded_total{facility="Test"} 1`)
}

func TestListTickets(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Regular: 2})

	for _, plate := range []string{"C1", "C2"} {
		rec, _ := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "car", Plate: plate})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := api.do(http.MethodPost, "/api/facility/leave", PlateRequest{Plate: "C1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := api.do(http.MethodGet, "/api/facility/tickets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []TicketResponse
	data(t, resp, &tickets)
	require.Len(t, tickets, 2)
	assert.Equal(t, "TKT-000002", tickets[0].ID)
	assert.Equal(t, "active", tickets[0].State)
	assert.Equal(t, "TKT-000001", tickets[1].ID)
	assert.Equal(t, "completed", tickets[1].State)

	rec, resp = api.do(http.MethodGet, "/api/facility/tickets?state=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data(t, resp, &tickets)
	require.Len(t, tickets, 1)

	rec, _ = api.do(http.MethodGet, "/api/facility/tickets?state=lost", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpotAdministration(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Regular: 2})

	rec, resp := api.do(http.MethodPost, "/api/facility/spots/1/reserve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var spot SpotResponse
	data(t, resp, &spot)
	assert.Equal(t, "reserved", spot.Status)

	rec, _ = api.do(http.MethodPost, "/api/facility/spots/1/reserve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/spots/2/out-of-service", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "car", Plate: "C1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/spots/2/in-service", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/facility/spots/1/unreserve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodPost, "/api/facility/spots/9/reserve", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/facility/spots/x/reserve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/facility/spots/1/paint", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = api.do(http.MethodGet, "/api/facility/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	data(t, resp, &status)
	assert.Equal(t, 2, status.Capacity)
	assert.Equal(t, 2, status.Available)
	assert.Len(t, status.Spots, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.createFacility(LayoutRequest{Compact: 1, Regular: 2, Large: 1})

	rec, _ := api.do(http.MethodPost, "/api/facility/park", ParkVehicleRequest{Type: "car", Plate: "C1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metrics := httptest.NewRecorder()
	api.router.ServeHTTP(metrics, req)

	require.Equal(t, http.StatusOK, metrics.Code)
	body := metrics.Body.String()
	assert.Contains(t, body, `parking_facility_capacity_spots{facility="Test"} 4`)
	assert.Contains(t, body, `parking_facility_spots{facility="Test",status="occupied"} 1`)
	assert.Contains(t, body, `parking_facility_available_spots{facility="Test",size="regular"} 1`)
	assert.Contains(t, body, `parking_facility_tickets{facility="Test",state="active"} 1`)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(parking.ErrInvalidArgument))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrAlreadyParked))
	assert.Equal(t, http.StatusConflict, statusFor(parking.ErrInvalidTransition))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(parking.ErrUnavailable))
	assert.Equal(t, http.StatusNotFound, statusFor(parking.ErrNotFound))
	assert.Equal(t, http.StatusPaymentRequired, statusFor(parking.ErrPaymentFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
