package parking

import (
	"fmt"
	"sort"
	"time"
)

// TicketBook indexes active tickets by plate and keeps completed tickets for
// statistics.
type TicketBook struct {
	ids       *TicketIDGenerator
	active    map[string]*Ticket
	completed []*Ticket
	byID      map[string]*Ticket
}

func NewTicketBook(ids *TicketIDGenerator) *TicketBook {
	return &TicketBook{
		ids:    ids,
		active: make(map[string]*Ticket),
		byID:   make(map[string]*Ticket),
	}
}

func (b *TicketBook) Issue(vehicle *Vehicle, spot *Spot, entry time.Time) (*Ticket, error) {
	if vehicle == nil || spot == nil {
		return nil, fmt.Errorf("%w: ticket needs a vehicle and a spot", ErrInvalidAttribute)
	}
	if _, ok := b.active[vehicle.Plate()]; ok {
		return nil, fmt.Errorf("%w: %s already has an active ticket", ErrAlreadyParked, vehicle.Plate())
	}

	id, seq := b.ids.next()
	ticket := newTicket(id, seq, vehicle, spot, entry)
	b.active[vehicle.Plate()] = ticket
	b.byID[ticket.id] = ticket
	return ticket, nil
}

func (b *TicketBook) Active(plate string) (*Ticket, bool) {
	t, ok := b.active[NormalizePlate(plate)]
	return t, ok
}

// FindByID searches active and completed tickets.
func (b *TicketBook) FindByID(id string) (*Ticket, bool) {
	t, ok := b.byID[id]
	return t, ok
}

// archive moves a completed ticket out of the active index.
func (b *TicketBook) archive(t *Ticket) error {
	if t.state != TicketCompleted {
		return fmt.Errorf("%w: cannot archive active ticket %s", ErrInvalidTransition, t.id)
	}
	if b.active[t.Plate()] != t {
		return fmt.Errorf("%w: ticket %s is not active", ErrNotFound, t.id)
	}
	delete(b.active, t.Plate())
	b.completed = append(b.completed, t)
	return nil
}

func (b *TicketBook) ActiveCount() int    { return len(b.active) }
func (b *TicketBook) CompletedCount() int { return len(b.completed) }

// ActiveTickets returns copies in issue order.
func (b *TicketBook) ActiveTickets() []Ticket {
	out := make([]Ticket, 0, len(b.active))
	for _, t := range b.active {
		out = append(out, *t)
	}
	sortTickets(out)
	return out
}

func (b *TicketBook) CompletedTickets() []Ticket {
	out := make([]Ticket, 0, len(b.completed))
	for _, t := range b.completed {
		out = append(out, *t)
	}
	sortTickets(out)
	return out
}

// Revenue sums what was charged for completed tickets, before refunds.
func (b *TicketBook) Revenue() float64 {
	total := 0.0
	for _, t := range b.completed {
		total += t.amountPaid
	}
	return roundCents(total)
}

func (b *TicketBook) Refunded() float64 {
	total := 0.0
	for _, t := range b.completed {
		total += t.refunded
	}
	return roundCents(total)
}

func (b *TicketBook) Unpaid() float64 {
	total := 0.0
	for _, t := range b.completed {
		if !t.paid {
			total += t.fee
		}
	}
	return roundCents(total)
}

func sortTickets(tickets []Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].seq < tickets[j].seq
	})
}
