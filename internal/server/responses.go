package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-facility/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Facility string `json:"facility,omitempty"`
	Meta     *Meta  `json:"meta,omitempty"`
}

type LayoutRequest struct {
	Compact int `json:"compact"`
	Regular int `json:"regular"`
	Large   int `json:"large"`
}

type CreateFacilityRequest struct {
	Name     string         `json:"name"`
	Address  string         `json:"address"`
	Capacity int            `json:"capacity"`
	Layout   *LayoutRequest `json:"layout,omitempty"`
}

type ParkVehicleRequest struct {
	Type       string  `json:"type"`
	Plate      string  `json:"plate"`
	Color      string  `json:"color"`
	Brand      string  `json:"brand"`
	Model      string  `json:"model"`
	Year       int     `json:"year"`
	Sidecar    bool    `json:"sidecar"`
	WeightTons float64 `json:"weight_tons"`
}

type PlateRequest struct {
	Plate string `json:"plate"`
}

// SettleRequest is optional; an empty body settles the plain fee.
type SettleRequest struct {
	DiscountPercent float64 `json:"discount_percent"`
	TaxPercent      float64 `json:"tax_percent"`
}

type RefundRequest struct {
	Amount float64 `json:"amount"`
}

type VehicleResponse struct {
	Plate      string  `json:"plate"`
	Type       string  `json:"type"`
	Color      string  `json:"color,omitempty"`
	Brand      string  `json:"brand,omitempty"`
	Model      string  `json:"model,omitempty"`
	Year       int     `json:"year,omitempty"`
	Sidecar    bool    `json:"sidecar,omitempty"`
	WeightTons float64 `json:"weight_tons,omitempty"`
	HourlyRate float64 `json:"hourly_rate"`
}

type SpotResponse struct {
	Number  int              `json:"number"`
	Size    string           `json:"size"`
	Status  string           `json:"status"`
	Vehicle *VehicleResponse `json:"vehicle,omitempty"`
}

type TicketResponse struct {
	ID         string          `json:"id"`
	Vehicle    VehicleResponse `json:"vehicle"`
	SpotNumber int             `json:"spot_number"`
	SpotSize   string          `json:"spot_size"`
	State      string          `json:"state"`
	EntryTime  time.Time       `json:"entry_time"`
	ExitTime   *time.Time      `json:"exit_time,omitempty"`
	Hours      int             `json:"hours"`
	Fee        float64         `json:"fee"`
	Paid       bool            `json:"paid"`
	AmountPaid float64         `json:"amount_paid"`
	Refunded   float64         `json:"refunded"`
}

type StatusResponse struct {
	Capacity  int            `json:"capacity"`
	Occupied  int            `json:"occupied"`
	Available int            `json:"available"`
	Spots     []SpotResponse `json:"spots"`
}

func newVehicleResponse(v *parking.Vehicle) VehicleResponse {
	return VehicleResponse{
		Plate:      v.Plate(),
		Type:       v.Class().String(),
		Color:      v.Color,
		Brand:      v.Brand,
		Model:      v.Model,
		Year:       v.Year,
		Sidecar:    v.HasSidecar(),
		WeightTons: v.WeightTons(),
		HourlyRate: v.HourlyRate(),
	}
}

func newSpotResponse(s parking.Spot) SpotResponse {
	resp := SpotResponse{
		Number: s.Number(),
		Size:   s.Size().String(),
		Status: s.Status().String(),
	}
	if v := s.Vehicle(); v != nil {
		vr := newVehicleResponse(v)
		resp.Vehicle = &vr
	}
	return resp
}

// newTicketResponse quotes active tickets at now; completed tickets carry
// their fixed hours and fee.
func newTicketResponse(t parking.Ticket, now time.Time) TicketResponse {
	resp := TicketResponse{
		ID:         t.ID(),
		Vehicle:    newVehicleResponse(t.Vehicle()),
		SpotNumber: t.SpotNumber(),
		SpotSize:   t.SpotSize().String(),
		State:      t.State().String(),
		EntryTime:  t.EntryTime(),
		Hours:      t.Hours(),
		Fee:        t.Fee(),
		Paid:       t.IsPaid(),
		AmountPaid: t.AmountPaid(),
		Refunded:   t.Refunded(),
	}
	if exit, ok := t.ExitTime(); ok {
		resp.ExitTime = &exit
	} else {
		resp.Hours = t.HoursAt(now)
		resp.Fee, _ = t.FeeAt(now)
	}
	return resp
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteCreated(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
