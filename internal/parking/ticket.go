package parking

import (
	"fmt"
	"time"
)

type TicketState int

const (
	TicketActive TicketState = iota + 1
	TicketCompleted
)

func (s TicketState) String() string {
	switch s {
	case TicketActive:
		return "active"
	case TicketCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Ticket records one occupancy from entry to exit. Ticket values returned by
// Facility are copies and never change after they are handed out.
type Ticket struct {
	id         string
	seq        int
	vehicle    *Vehicle
	spotNumber int
	spotSize   SpotSize
	entryTime  time.Time
	exitTime   time.Time
	hours      int
	fee        float64
	paid       bool
	amountPaid float64
	refunded   float64
	state      TicketState
}

func newTicket(id string, seq int, vehicle *Vehicle, spot *Spot, entry time.Time) *Ticket {
	return &Ticket{
		id:         id,
		seq:        seq,
		vehicle:    vehicle,
		spotNumber: spot.number,
		spotSize:   spot.size,
		entryTime:  entry,
		state:      TicketActive,
	}
}

func (t Ticket) ID() string           { return t.id }
func (t Ticket) Vehicle() *Vehicle    { return t.vehicle }
func (t Ticket) Plate() string        { return t.vehicle.Plate() }
func (t Ticket) SpotNumber() int      { return t.spotNumber }
func (t Ticket) SpotSize() SpotSize   { return t.spotSize }
func (t Ticket) EntryTime() time.Time { return t.entryTime }
func (t Ticket) State() TicketState   { return t.state }
func (t Ticket) IsActive() bool       { return t.state == TicketActive }
func (t Ticket) IsPaid() bool         { return t.paid }

// AmountPaid is what was charged for the ticket after any discount and tax.
func (t Ticket) AmountPaid() float64 { return t.amountPaid }
func (t Ticket) Refunded() float64   { return t.refunded }

// Refundable is the part of the charge not yet refunded.
func (t Ticket) Refundable() float64 { return roundCents(t.amountPaid - t.refunded) }

// ExitTime is zero and ok is false while the ticket is active.
func (t Ticket) ExitTime() (exit time.Time, ok bool) {
	return t.exitTime, t.state == TicketCompleted
}

// Hours is the billed duration fixed at completion; zero while active.
func (t Ticket) Hours() int { return t.hours }

// Fee is the amount fixed at completion; zero while active.
func (t Ticket) Fee() float64 { return t.fee }

// HoursAt returns billable hours up to now, or up to the exit time once
// completed.
func (t Ticket) HoursAt(now time.Time) int {
	end := now
	if t.state == TicketCompleted {
		end = t.exitTime
	}
	return billableHours(end.Sub(t.entryTime))
}

// FeeAt quotes the fee as if the vehicle left at now. A completed ticket
// always quotes its fixed fee.
func (t Ticket) FeeAt(now time.Time) (float64, error) {
	if t.state == TicketCompleted {
		return t.fee, nil
	}
	return t.vehicle.Fee(t.HoursAt(now))
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket [%s, %s, spot #%d, %s, fee %.2f]",
		t.id, t.Plate(), t.spotNumber, t.state, t.fee)
}

func (t *Ticket) complete(at time.Time) error {
	if t.state != TicketActive {
		return fmt.Errorf("%w: ticket %s already completed", ErrInvalidTransition, t.id)
	}
	hours := t.HoursAt(at)
	fee, err := t.vehicle.Fee(hours)
	if err != nil {
		return err
	}
	t.exitTime = at
	t.hours = hours
	t.fee = fee
	t.state = TicketCompleted
	return nil
}

func (t *Ticket) markPaid(amount float64) error {
	if t.state != TicketCompleted {
		return fmt.Errorf("%w: ticket %s is still active", ErrInvalidTransition, t.id)
	}
	if t.paid {
		return fmt.Errorf("%w: ticket %s already paid", ErrInvalidTransition, t.id)
	}
	t.paid = true
	t.amountPaid = roundCents(amount)
	return nil
}

// billableHours rounds any partial hour up. Non-positive durations bill zero.
func billableHours(elapsed time.Duration) int {
	if elapsed <= 0 {
		return 0
	}
	hours := int(elapsed / time.Hour)
	if elapsed%time.Hour != 0 {
		hours++
	}
	return hours
}

// TicketIDGenerator hands out TKT-000001 style ids. Each facility owns one.
type TicketIDGenerator struct {
	prefix string
	issued int
}

func NewTicketIDGenerator(prefix string) *TicketIDGenerator {
	return &TicketIDGenerator{prefix: prefix}
}

func (g *TicketIDGenerator) Next() string {
	id, _ := g.next()
	return id
}

// next also returns the counter value the id was formatted from.
func (g *TicketIDGenerator) next() (string, int) {
	g.issued++
	return fmt.Sprintf("%s-%06d", g.prefix, g.issued), g.issued
}

func (g *TicketIDGenerator) Issued() int {
	return g.issued
}
