package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"parking-facility/internal/logging"
	"parking-facility/internal/parking"
)

const errFacilityNotCreated = "Facility not created. Create facility first"

type Handler struct {
	telemetry   *parking.TelemetryProvider
	serviceName string
	opts        []parking.Option

	mu       sync.RWMutex
	facility *parking.InstrumentedFacility
}

// NewHandler serves one facility at a time. opts are applied to every
// facility created through the API.
func NewHandler(telemetry *parking.TelemetryProvider, serviceName string, opts ...parking.Option) *Handler {
	if serviceName == "" {
		serviceName = parking.DefaultServiceName
	}
	return &Handler{
		telemetry:   telemetry,
		serviceName: serviceName,
		opts:        opts,
	}
}

// SetFacility installs a facility built elsewhere, e.g. from configuration
// at startup.
func (h *Handler) SetFacility(f *parking.InstrumentedFacility) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.facility = f
}

func (h *Handler) current() *parking.InstrumentedFacility {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.facility
}

func (h *Handler) snapshot() (parking.Snapshot, bool) {
	f := h.current()
	if f == nil {
		return parking.Snapshot{}, false
	}
	return f.Stats(), true
}

// requireFacility writes the error response itself when no facility exists.
func (h *Handler) requireFacility(w http.ResponseWriter, r *http.Request) *parking.InstrumentedFacility {
	f := h.current()
	if f == nil {
		WriteError(r.Context(), w, http.StatusBadRequest, errFacilityNotCreated)
	}
	return f
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	}
	if f := h.current(); f != nil {
		resp.Facility = f.Name()
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateFacility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateFacilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts := append([]parking.Option{}, h.opts...)
	if req.Address != "" {
		opts = append(opts, parking.WithAddress(req.Address))
	}
	if req.Layout != nil {
		opts = append(opts, parking.WithLayout(parking.Layout{
			Compact: req.Layout.Compact,
			Regular: req.Layout.Regular,
			Large:   req.Layout.Large,
		}))
	} else if req.Capacity <= 0 {
		WriteError(ctx, w, http.StatusBadRequest, "Capacity must be greater than 0")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Main Facility"
	}

	facility, err := parking.NewInstrumentedFacility(name, req.Capacity, h.telemetry, opts...)
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}
	h.SetFacility(facility)

	logging.Info(ctx).Str("facility", name).Int("capacity", facility.Capacity()).Msg("facility created")
	WriteCreated(ctx, w, "Facility created successfully", facility.Stats())
}

func (h *Handler) ParkVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	var req ParkVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	vehicle, err := buildVehicle(req)
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	ticket, err := facility.Park(ctx, vehicle)
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteCreated(ctx, w, "Vehicle parked successfully", newTicketResponse(ticket, facility.Now()))
}

func buildVehicle(req ParkVehicleRequest) (*parking.Vehicle, error) {
	class, err := parking.ParseVehicleClass(req.Type)
	if err != nil {
		return nil, err
	}

	details := parking.Details{
		Color: req.Color,
		Brand: req.Brand,
		Model: req.Model,
		Year:  req.Year,
	}

	switch class {
	case parking.Motorcycle:
		return parking.NewMotorcycle(req.Plate, details, req.Sidecar)
	case parking.Truck:
		return parking.NewTruck(req.Plate, details, req.WeightTons)
	default:
		return parking.NewCar(req.Plate, details)
	}
}

func (h *Handler) LeaveFacility(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, "Vehicle left, ticket paid", (*parking.InstrumentedFacility).Unpark)
}

func (h *Handler) InvoiceVehicle(w http.ResponseWriter, r *http.Request) {
	h.exit(w, r, "Vehicle left, ticket invoiced", (*parking.InstrumentedFacility).Invoice)
}

func (h *Handler) exit(w http.ResponseWriter, r *http.Request, message string,
	leave func(*parking.InstrumentedFacility, context.Context, string) (parking.Ticket, error)) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	var req PlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Plate) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Plate is required")
		return
	}

	ticket, err := leave(facility, ctx, req.Plate)
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, message, newTicketResponse(ticket, facility.Now()))
}

func (h *Handler) SettleTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ticket, err := facility.SettleWith(ctx, chi.URLParam(r, "id"), parking.Adjustment{
		DiscountPercent: req.DiscountPercent,
		TaxPercent:      req.TaxPercent,
	})
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Ticket settled", newTicketResponse(ticket, facility.Now()))
}

func (h *Handler) RefundTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ticket, err := facility.Refund(ctx, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Ticket refunded", newTicketResponse(ticket, facility.Now()))
}

func (h *Handler) LocateVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	plate := chi.URLParam(r, "plate")
	if strings.TrimSpace(plate) == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Plate is required")
		return
	}

	spot, err := facility.Locate(ctx, plate)
	if err != nil {
		WriteError(ctx, w, http.StatusNotFound, "Vehicle not found")
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", newSpotResponse(spot))
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	spots := facility.Spots()
	resp := StatusResponse{
		Capacity: len(spots),
		Spots:    make([]SpotResponse, 0, len(spots)),
	}
	for _, spot := range spots {
		switch {
		case spot.IsOccupied():
			resp.Occupied++
		case spot.IsAvailable():
			resp.Available++
		}
		resp.Spots = append(resp.Spots, newSpotResponse(spot))
	}

	WriteSuccess(ctx, w, "Status retrieved successfully", resp)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}
	WriteSuccess(r.Context(), w, "Statistics retrieved successfully", facility.StatsContext(r.Context()))
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	var tickets []parking.Ticket
	switch state := r.URL.Query().Get("state"); state {
	case "active":
		tickets = facility.ActiveTickets()
	case "completed":
		tickets = facility.CompletedTickets()
	case "":
		active, completed := facility.Tickets()
		tickets = append(active, completed...)
	default:
		WriteError(ctx, w, http.StatusBadRequest, "state must be active or completed")
		return
	}

	now := facility.Now()
	resp := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		resp = append(resp, newTicketResponse(t, now))
	}

	WriteSuccess(ctx, w, "Tickets retrieved successfully", resp)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	ticket, err := facility.FindTicket(chi.URLParam(r, "id"))
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Ticket found", newTicketResponse(ticket, facility.Now()))
}

func (h *Handler) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	facility := h.requireFacility(w, r)
	if facility == nil {
		return
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		WriteError(ctx, w, http.StatusBadRequest, "Spot number must be a positive integer")
		return
	}

	var spot parking.Spot
	switch action := chi.URLParam(r, "action"); action {
	case "reserve":
		spot, err = facility.Reserve(ctx, number)
	case "unreserve":
		spot, err = facility.CancelReservation(ctx, number)
	case "out-of-service":
		spot, err = facility.MarkOutOfService(ctx, number)
	case "in-service":
		spot, err = facility.ReturnToService(ctx, number)
	default:
		WriteError(ctx, w, http.StatusBadRequest, "Unknown spot action "+action)
		return
	}
	if err != nil {
		writeFacilityError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Spot updated", newSpotResponse(spot))
}

// statusFor maps facility error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, parking.ErrInvalidAttribute):
		return http.StatusBadRequest
	case errors.Is(err, parking.ErrAlreadyParked), errors.Is(err, parking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, parking.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, parking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrPaymentFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func writeFacilityError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("facility operation failed")
		WriteError(r.Context(), w, status, "Internal server error")
		return
	}
	WriteError(r.Context(), w, status, err.Error())
}
