package parking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parking-facility/internal/logging"
)

const (
	defaultAddress      = "Unknown address"
	defaultTicketPrefix = "TKT"

	// DefaultMaxCapacity bounds the number of spots a facility may hold.
	DefaultMaxCapacity = 10000
)

type facilityOptions struct {
	address      string
	layout       *Layout
	clock        Clock
	payments     PaymentProcessor
	ticketPrefix string
	maxCapacity  int
}

type Option func(*facilityOptions)

func WithAddress(address string) Option {
	return func(o *facilityOptions) { o.address = address }
}

// WithLayout overrides the default 40/40/20 split. The capacity passed to
// NewFacility is ignored when a layout is given.
func WithLayout(layout Layout) Option {
	return func(o *facilityOptions) { o.layout = &layout }
}

func WithClock(clock Clock) Option {
	return func(o *facilityOptions) { o.clock = clock }
}

func WithPaymentProcessor(p PaymentProcessor) Option {
	return func(o *facilityOptions) { o.payments = p }
}

func WithTicketPrefix(prefix string) Option {
	return func(o *facilityOptions) { o.ticketPrefix = prefix }
}

// WithMaxCapacity caps the total spot count, whether it comes from the
// capacity argument or from a layout.
func WithMaxCapacity(n int) Option {
	return func(o *facilityOptions) { o.maxCapacity = n }
}

// Facility ties the spot inventory, the allocator and the ticket book
// together. All methods are safe for concurrent use: mutations hold the write
// lock for their whole flow, queries hold the read lock.
type Facility struct {
	mu sync.RWMutex

	name      string
	address   string
	inventory *Inventory
	allocator *Allocator
	tickets   *TicketBook
	clock     Clock
	payments  PaymentProcessor
}

func NewFacility(name string, capacity int, opts ...Option) (*Facility, error) {
	o := facilityOptions{
		address:      defaultAddress,
		clock:        SystemClock{},
		ticketPrefix: defaultTicketPrefix,
		maxCapacity:  DefaultMaxCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.layout == nil {
		if capacity < 0 || capacity > o.maxCapacity {
			return nil, fmt.Errorf("%w: capacity must be in [0, %d], got %d", ErrInvalidAttribute, o.maxCapacity, capacity)
		}
		layout := DefaultLayout(capacity)
		o.layout = &layout
	}
	if o.payments == nil {
		o.payments = NewSimulatedProcessor()
	}

	inventory, err := NewInventory(*o.layout, o.maxCapacity)
	if err != nil {
		return nil, err
	}

	return &Facility{
		name:      name,
		address:   o.address,
		inventory: inventory,
		allocator: NewAllocator(inventory),
		tickets:   NewTicketBook(NewTicketIDGenerator(o.ticketPrefix)),
		clock:     o.clock,
		payments:  o.payments,
	}, nil
}

func (f *Facility) Name() string    { return f.name }
func (f *Facility) Address() string { return f.address }

func (f *Facility) Capacity() int {
	return f.inventory.Capacity()
}

// Park allocates a spot for vehicle and issues an active ticket.
func (f *Facility) Park(ctx context.Context, vehicle *Vehicle) (Ticket, error) {
	if vehicle == nil {
		return Ticket{}, fmt.Errorf("park: %w: nil vehicle", ErrInvalidAttribute)
	}
	if !vehicle.Class().valid() || vehicle.Plate() == "" {
		return Ticket{}, fmt.Errorf("park: %w: vehicle must be built with a constructor", ErrInvalidAttribute)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	plate := vehicle.Plate()
	occupied := f.inventory.FindByVehicle(plate)
	_, ticketed := f.tickets.Active(plate)
	if occupied != nil || ticketed {
		if (occupied != nil) != ticketed {
			logging.Error(ctx).
				Str("plate", plate).
				Bool("occupies_spot", occupied != nil).
				Bool("has_active_ticket", ticketed).
				Msg("spot inventory and ticket book disagree")
		}
		return Ticket{}, fmt.Errorf("park %s: %w", plate, ErrAlreadyParked)
	}

	spot, err := f.allocator.Allocate(vehicle)
	if err != nil {
		logging.Warn(ctx).Err(err).Str("plate", plate).Str("class", vehicle.Class().String()).Msg("parking refused")
		return Ticket{}, fmt.Errorf("park %s: %w", plate, err)
	}

	ticket, err := f.tickets.Issue(vehicle, spot, f.clock.Now())
	if err != nil {
		if _, rerr := f.inventory.Release(spot); rerr != nil {
			logging.Error(ctx).Err(rerr).Int("spot", spot.number).Msg("rollback of spot occupation failed")
		}
		return Ticket{}, fmt.Errorf("park %s: %w", plate, err)
	}

	logging.Info(ctx).
		Str("plate", plate).
		Str("class", vehicle.Class().String()).
		Int("spot", spot.number).
		Str("spot_size", spot.size.String()).
		Str("ticket", ticket.id).
		Msg("vehicle parked")

	return *ticket, nil
}

// Unpark completes the vehicle's ticket, charges the fee and frees the spot.
// A declined payment leaves the vehicle parked and the ticket active.
func (f *Facility) Unpark(ctx context.Context, plate string) (Ticket, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return Ticket{}, fmt.Errorf("unpark: %w: empty license plate", ErrInvalidAttribute)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets.Active(plate)
	if !ok {
		return Ticket{}, fmt.Errorf("unpark %s: no active ticket: %w", plate, ErrNotFound)
	}

	if _, err := f.boundSpot(ticket); err != nil {
		return Ticket{}, fmt.Errorf("unpark %s: %w", plate, err)
	}

	exit := f.clock.Now()
	fee, err := ticket.FeeAt(exit)
	if err != nil {
		return Ticket{}, fmt.Errorf("unpark %s: %w", plate, err)
	}

	if fee > 0 {
		if err := f.charge(ctx, ticket, fee); err != nil {
			return Ticket{}, fmt.Errorf("unpark %s: %w", plate, err)
		}
	}

	if err := f.checkout(ticket, exit); err != nil {
		return Ticket{}, fmt.Errorf("unpark %s: %w", plate, err)
	}
	if err := ticket.markPaid(fee); err != nil {
		return Ticket{}, fmt.Errorf("unpark %s: %w", plate, err)
	}

	logging.Info(ctx).
		Str("plate", plate).
		Str("ticket", ticket.id).
		Int("hours", ticket.hours).
		Float64("fee", ticket.fee).
		Msg("vehicle left")

	return *ticket, nil
}

// Invoice lets the vehicle leave without paying. The completed ticket stays
// unpaid until Settle succeeds.
func (f *Facility) Invoice(ctx context.Context, plate string) (Ticket, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return Ticket{}, fmt.Errorf("invoice: %w: empty license plate", ErrInvalidAttribute)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets.Active(plate)
	if !ok {
		return Ticket{}, fmt.Errorf("invoice %s: no active ticket: %w", plate, ErrNotFound)
	}

	if err := f.checkout(ticket, f.clock.Now()); err != nil {
		return Ticket{}, fmt.Errorf("invoice %s: %w", plate, err)
	}
	if ticket.fee == 0 {
		if err := ticket.markPaid(0); err != nil {
			return Ticket{}, fmt.Errorf("invoice %s: %w", plate, err)
		}
	}

	logging.Info(ctx).
		Str("plate", plate).
		Str("ticket", ticket.id).
		Float64("fee", ticket.fee).
		Msg("vehicle left on invoice")

	return *ticket, nil
}

// Settle charges a completed, unpaid ticket its fee.
func (f *Facility) Settle(ctx context.Context, ticketID string) (Ticket, error) {
	return f.SettleWith(ctx, ticketID, Adjustment{})
}

// SettleWith charges a completed, unpaid ticket its fee after discount and
// tax. A fee discounted to zero is marked paid without a charge.
func (f *Facility) SettleWith(ctx context.Context, ticketID string, adj Adjustment) (Ticket, error) {
	if err := adj.validate(); err != nil {
		return Ticket{}, fmt.Errorf("settle %s: %w", ticketID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets.FindByID(ticketID)
	if !ok {
		return Ticket{}, fmt.Errorf("settle %s: %w", ticketID, ErrNotFound)
	}
	if ticket.state != TicketCompleted {
		return Ticket{}, fmt.Errorf("settle %s: %w: ticket is still active", ticketID, ErrInvalidTransition)
	}
	if ticket.paid {
		return Ticket{}, fmt.Errorf("settle %s: %w: ticket already paid", ticketID, ErrInvalidTransition)
	}

	amount := adj.Apply(ticket.fee)
	if amount > 0 {
		if err := f.charge(ctx, ticket, amount); err != nil {
			return Ticket{}, fmt.Errorf("settle %s: %w", ticketID, err)
		}
	}
	if err := ticket.markPaid(amount); err != nil {
		return Ticket{}, fmt.Errorf("settle %s: %w", ticketID, err)
	}

	logging.Info(ctx).
		Str("ticket", ticketID).
		Float64("fee", ticket.fee).
		Float64("discount_percent", adj.DiscountPercent).
		Float64("tax_percent", adj.TaxPercent).
		Float64("charged", amount).
		Msg("invoice settled")

	return *ticket, nil
}

// Refund returns part or all of a paid ticket's charge. The payment processor
// must implement Refunder.
func (f *Facility) Refund(ctx context.Context, ticketID string, amount float64) (Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ticket, ok := f.tickets.FindByID(ticketID)
	if !ok {
		return Ticket{}, fmt.Errorf("refund %s: %w", ticketID, ErrNotFound)
	}
	if !ticket.paid {
		return Ticket{}, fmt.Errorf("refund %s: %w: ticket is not paid", ticketID, ErrInvalidTransition)
	}

	amount = roundCents(amount)
	if !(amount > 0) || amount > ticket.Refundable() {
		return Ticket{}, fmt.Errorf("refund %s: %w: amount %.2f outside (0, %.2f]",
			ticketID, ErrInvalidArgument, amount, ticket.Refundable())
	}

	refunder, ok := f.payments.(Refunder)
	if !ok {
		return Ticket{}, fmt.Errorf("refund %s: %w: processor does not support refunds", ticketID, ErrPaymentFailed)
	}
	ok, err := refunder.Refund(ctx, amount)
	if err != nil {
		logging.Warn(ctx).Err(err).Str("ticket", ticketID).Float64("amount", amount).Msg("refund processor error")
		return Ticket{}, fmt.Errorf("refund %s: %w: %v", ticketID, ErrPaymentFailed, err)
	}
	if !ok {
		logging.Warn(ctx).Str("ticket", ticketID).Float64("amount", amount).Msg("refund declined")
		return Ticket{}, fmt.Errorf("refund %s: %w: declined %.2f", ticketID, ErrPaymentFailed, amount)
	}
	ticket.refunded = roundCents(ticket.refunded + amount)

	logging.Info(ctx).
		Str("ticket", ticketID).
		Float64("amount", amount).
		Str("transaction", f.lastTransactionID()).
		Msg("ticket refunded")

	return *ticket, nil
}

func (f *Facility) charge(ctx context.Context, ticket *Ticket, amount float64) error {
	ok, err := f.payments.ProcessPayment(ctx, amount)
	if err != nil {
		logging.Warn(ctx).Err(err).Str("ticket", ticket.id).Float64("amount", amount).Msg("payment processor error")
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !ok {
		logging.Warn(ctx).Str("ticket", ticket.id).Float64("amount", amount).Msg("payment declined")
		return fmt.Errorf("%w: declined %.2f for ticket %s", ErrPaymentFailed, amount, ticket.id)
	}
	logging.Debug(ctx).
		Str("ticket", ticket.id).
		Float64("amount", amount).
		Str("transaction", f.lastTransactionID()).
		Msg("payment accepted")
	return nil
}

// lastTransactionID is empty for processors that do not record transactions.
func (f *Facility) lastTransactionID() string {
	if rec, ok := f.payments.(TransactionRecorder); ok {
		return rec.LastTransaction().ID
	}
	return ""
}

// checkout completes the ticket, frees its spot and archives it. The spot is
// released only after completion succeeded so a failure leaves state intact.
func (f *Facility) checkout(ticket *Ticket, exit time.Time) error {
	spot, err := f.boundSpot(ticket)
	if err != nil {
		return err
	}
	if err := ticket.complete(exit); err != nil {
		return err
	}
	if _, err := f.inventory.Release(spot); err != nil {
		return err
	}
	return f.tickets.archive(ticket)
}

func (f *Facility) boundSpot(ticket *Ticket) (*Spot, error) {
	spot := f.inventory.FindByNumber(ticket.spotNumber)
	if spot == nil || !spot.IsOccupied() || spot.vehicle.Plate() != ticket.Plate() {
		return nil, fmt.Errorf("%w: ticket %s does not match spot #%d", ErrInvalidTransition, ticket.id, ticket.spotNumber)
	}
	return spot, nil
}

// Locate returns the spot currently holding plate.
func (f *Facility) Locate(ctx context.Context, plate string) (Spot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	spot := f.inventory.FindByVehicle(plate)
	if spot == nil {
		return Spot{}, fmt.Errorf("locate %s: %w", NormalizePlate(plate), ErrNotFound)
	}
	return *spot, nil
}

// AvailableFor counts available spots of the vehicle's preferred size. It is
// zero for a nil vehicle or one without a known class.
func (f *Facility) AvailableFor(vehicle *Vehicle) int {
	if vehicle == nil || !vehicle.Class().valid() {
		return 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inventory.CountAvailable(RequiredSize(vehicle.Class()))
}

func (f *Facility) Spots() []Spot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inventory.Snapshot()
}

func (f *Facility) SpotsByStatus(status SpotStatus) []Spot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.inventory.SpotsByStatus(status)
}

func (f *Facility) FindSpot(number int) (Spot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	spot := f.inventory.FindByNumber(number)
	if spot == nil {
		return Spot{}, fmt.Errorf("spot #%d: %w", number, ErrNotFound)
	}
	return *spot, nil
}

func (f *Facility) Reserve(ctx context.Context, number int) (Spot, error) {
	return f.adminSpot(ctx, number, "reserve", (*Spot).reserve)
}

func (f *Facility) CancelReservation(ctx context.Context, number int) (Spot, error) {
	return f.adminSpot(ctx, number, "cancel_reservation", (*Spot).cancelReservation)
}

func (f *Facility) MarkOutOfService(ctx context.Context, number int) (Spot, error) {
	return f.adminSpot(ctx, number, "out_of_service", (*Spot).markOutOfService)
}

func (f *Facility) ReturnToService(ctx context.Context, number int) (Spot, error) {
	return f.adminSpot(ctx, number, "return_to_service", (*Spot).returnToService)
}

func (f *Facility) adminSpot(ctx context.Context, number int, action string, apply func(*Spot) error) (Spot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	spot := f.inventory.FindByNumber(number)
	if spot == nil {
		return Spot{}, fmt.Errorf("%s spot #%d: %w", action, number, ErrNotFound)
	}
	if err := apply(spot); err != nil {
		return Spot{}, err
	}

	logging.Info(ctx).Int("spot", number).Str("action", action).Str("status", spot.status.String()).Msg("spot status changed")
	return *spot, nil
}

func (f *Facility) ActiveTicket(plate string) (Ticket, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t, ok := f.tickets.Active(plate)
	if !ok {
		return Ticket{}, fmt.Errorf("active ticket for %s: %w", NormalizePlate(plate), ErrNotFound)
	}
	return *t, nil
}

func (f *Facility) FindTicket(id string) (Ticket, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	t, ok := f.tickets.FindByID(id)
	if !ok {
		return Ticket{}, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	return *t, nil
}

func (f *Facility) ActiveTickets() []Ticket {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tickets.ActiveTickets()
}

func (f *Facility) CompletedTickets() []Ticket {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tickets.CompletedTickets()
}

// Tickets returns active and completed tickets from the same moment, so a
// concurrent exit cannot move a ticket between the two lists.
func (f *Facility) Tickets() (active, completed []Ticket) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.tickets.ActiveTickets(), f.tickets.CompletedTickets()
}

// Now is the facility clock, used to quote fees of active tickets.
func (f *Facility) Now() time.Time {
	return f.clock.Now()
}
