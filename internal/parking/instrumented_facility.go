package parking

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedFacility wraps Facility with spans and OpenTelemetry metrics.
type InstrumentedFacility struct {
	*Facility
	telemetry *TelemetryProvider

	parkOperations    metric.Int64Counter
	exitOperations    metric.Int64Counter
	occupancyGauge    metric.Int64UpDownCounter
	operationDuration metric.Float64Histogram
	totalSpotsGauge   metric.Int64UpDownCounter
	revenueCounter    metric.Float64Counter
	refundCounter     metric.Float64Counter
}

func NewInstrumentedFacility(name string, capacity int, telemetry *TelemetryProvider, opts ...Option) (*InstrumentedFacility, error) {
	base, err := NewFacility(name, capacity, opts...)
	if err != nil {
		return nil, err
	}

	meter := telemetry.Meter()

	parkOperations, err := meter.Int64Counter("parking_operations_total",
		metric.WithDescription("Total number of park attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	exitOperations, err := meter.Int64Counter("exit_operations_total",
		metric.WithDescription("Total number of unpark and invoice attempts"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	occupancyGauge, err := meter.Int64UpDownCounter("facility_occupancy",
		metric.WithDescription("Current number of occupied spots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("operation_duration_seconds",
		metric.WithDescription("Duration of facility operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	totalSpotsGauge, err := meter.Int64UpDownCounter("facility_total_spots",
		metric.WithDescription("Total number of spots"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	revenueCounter, err := meter.Float64Counter("facility_revenue_total",
		metric.WithDescription("Fees collected from paid tickets"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	refundCounter, err := meter.Float64Counter("facility_refunds_total",
		metric.WithDescription("Amounts returned on paid tickets"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	ifac := &InstrumentedFacility{
		Facility:          base,
		telemetry:         telemetry,
		parkOperations:    parkOperations,
		exitOperations:    exitOperations,
		occupancyGauge:    occupancyGauge,
		operationDuration: operationDuration,
		totalSpotsGauge:   totalSpotsGauge,
		revenueCounter:    revenueCounter,
		refundCounter:     refundCounter,
	}

	totalSpotsGauge.Add(context.Background(), int64(base.Capacity()),
		metric.WithAttributes(attribute.String("facility", name)))

	return ifac, nil
}

func (f *InstrumentedFacility) Park(ctx context.Context, vehicle *Vehicle) (Ticket, error) {
	attrs := []attribute.KeyValue{}
	if vehicle != nil {
		attrs = append(attrs,
			attribute.String("vehicle.plate", vehicle.Plate()),
			attribute.String("vehicle.class", vehicle.Class().String()),
		)
	}

	ctx, span := f.telemetry.Tracer().Start(ctx, "facility.park", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	span.AddEvent("allocating_spot")

	ticket, err := f.Facility.Park(ctx, vehicle)

	labels := []attribute.KeyValue{attribute.String("operation", "park")}
	if vehicle != nil {
		labels = append(labels, attribute.String("vehicle_class", vehicle.Class().String()))
	}

	if err != nil {
		recordFailure(span, err)
		labels = append(labels, attribute.String("status", statusLabel(err)))
	} else {
		labels = append(labels,
			attribute.String("status", "success"),
			attribute.String("spot_size", ticket.SpotSize().String()),
		)
		span.SetAttributes(
			attribute.Int("spot.number", ticket.SpotNumber()),
			attribute.String("ticket.id", ticket.ID()),
		)
		span.AddEvent("spot_allocated", trace.WithAttributes(
			attribute.Int("spot_number", ticket.SpotNumber()),
		))
		f.occupancyGauge.Add(ctx, 1)
	}

	f.parkOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	f.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, err
}

func (f *InstrumentedFacility) Unpark(ctx context.Context, plate string) (Ticket, error) {
	return f.exit(ctx, "unpark", plate, f.Facility.Unpark)
}

func (f *InstrumentedFacility) Invoice(ctx context.Context, plate string) (Ticket, error) {
	return f.exit(ctx, "invoice", plate, f.Facility.Invoice)
}

func (f *InstrumentedFacility) exit(ctx context.Context, op, plate string,
	leave func(context.Context, string) (Ticket, error)) (Ticket, error) {
	ctx, span := f.telemetry.Tracer().Start(ctx, "facility."+op,
		trace.WithAttributes(attribute.String("vehicle.plate", NormalizePlate(plate))))
	defer span.End()

	start := time.Now()
	span.AddEvent("completing_ticket")

	ticket, err := leave(ctx, plate)

	labels := []attribute.KeyValue{attribute.String("operation", op)}
	if err != nil {
		recordFailure(span, err)
		labels = append(labels, attribute.String("status", statusLabel(err)))
	} else {
		labels = append(labels,
			attribute.String("status", "success"),
			attribute.String("vehicle_class", ticket.Vehicle().Class().String()),
		)
		span.SetAttributes(
			attribute.String("ticket.id", ticket.ID()),
			attribute.Int("ticket.hours", ticket.Hours()),
			attribute.Float64("ticket.fee", ticket.Fee()),
		)
		span.AddEvent("spot_released", trace.WithAttributes(
			attribute.Int("spot_number", ticket.SpotNumber()),
		))
		f.occupancyGauge.Add(ctx, -1)
		if ticket.AmountPaid() > 0 {
			f.revenueCounter.Add(ctx, ticket.AmountPaid())
		}
	}

	f.exitOperations.Add(ctx, 1, metric.WithAttributes(labels...))
	f.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, err
}

func (f *InstrumentedFacility) Settle(ctx context.Context, ticketID string) (Ticket, error) {
	return f.SettleWith(ctx, ticketID, Adjustment{})
}

func (f *InstrumentedFacility) SettleWith(ctx context.Context, ticketID string, adj Adjustment) (Ticket, error) {
	ctx, span := f.telemetry.Tracer().Start(ctx, "facility.settle",
		trace.WithAttributes(
			attribute.String("ticket.id", ticketID),
			attribute.Float64("payment.discount_percent", adj.DiscountPercent),
			attribute.Float64("payment.tax_percent", adj.TaxPercent),
		))
	defer span.End()

	start := time.Now()
	ticket, err := f.Facility.SettleWith(ctx, ticketID, adj)

	labels := []attribute.KeyValue{attribute.String("operation", "settle")}
	if err != nil {
		recordFailure(span, err)
		labels = append(labels, attribute.String("status", statusLabel(err)))
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.SetAttributes(
			attribute.Float64("ticket.fee", ticket.Fee()),
			attribute.Float64("ticket.amount_paid", ticket.AmountPaid()),
		)
		if ticket.AmountPaid() > 0 {
			f.revenueCounter.Add(ctx, ticket.AmountPaid())
		}
	}

	f.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, err
}

func (f *InstrumentedFacility) Refund(ctx context.Context, ticketID string, amount float64) (Ticket, error) {
	ctx, span := f.telemetry.Tracer().Start(ctx, "facility.refund",
		trace.WithAttributes(
			attribute.String("ticket.id", ticketID),
			attribute.Float64("refund.amount", amount),
		))
	defer span.End()

	start := time.Now()
	ticket, err := f.Facility.Refund(ctx, ticketID, amount)

	labels := []attribute.KeyValue{attribute.String("operation", "refund")}
	if err != nil {
		recordFailure(span, err)
		labels = append(labels, attribute.String("status", statusLabel(err)))
	} else {
		labels = append(labels, attribute.String("status", "success"))
		span.SetAttributes(attribute.Float64("ticket.refunded", ticket.Refunded()))
		f.refundCounter.Add(ctx, roundCents(amount))
	}

	f.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return ticket, err
}

func (f *InstrumentedFacility) Locate(ctx context.Context, plate string) (Spot, error) {
	ctx, span := f.telemetry.Tracer().Start(ctx, "facility.locate",
		trace.WithAttributes(attribute.String("vehicle.plate", NormalizePlate(plate))))
	defer span.End()

	start := time.Now()
	span.AddEvent("searching_by_plate")

	spot, err := f.Facility.Locate(ctx, plate)

	labels := []attribute.KeyValue{attribute.String("operation", "locate")}
	if err != nil {
		span.AddEvent("vehicle_not_found")
		labels = append(labels, attribute.String("status", "not_found"))
	} else {
		span.SetAttributes(attribute.Int("spot.number", spot.Number()))
		span.AddEvent("vehicle_found", trace.WithAttributes(
			attribute.Int("spot_number", spot.Number()),
		))
		labels = append(labels, attribute.String("status", "found"))
	}

	f.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))

	return spot, err
}

// StatsContext is Stats with a span around it.
func (f *InstrumentedFacility) StatsContext(ctx context.Context) Snapshot {
	_, span := f.telemetry.Tracer().Start(ctx, "facility.stats")
	defer span.End()

	snap := f.Facility.Stats()
	span.SetAttributes(
		attribute.Int("facility.occupied", snap.Occupied),
		attribute.Int("facility.capacity", snap.Capacity),
		attribute.Float64("facility.revenue", snap.Revenue),
	)
	return snap
}

func recordFailure(span trace.Span, err error) {
	span.RecordError(err)
	if IsOperational(err) {
		span.AddEvent("operation_refused", trace.WithAttributes(
			attribute.String("reason", statusLabel(err)),
		))
		return
	}
	span.SetStatus(codes.Error, err.Error())
}

// statusLabel maps an error to a low-cardinality metric label.
func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrAlreadyParked):
		return "already_parked"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPaymentFailed):
		return "payment_failed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidAttribute):
		return "invalid_attribute"
	default:
		return "failed"
	}
}
