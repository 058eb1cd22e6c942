package parking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Shell is a line oriented command interpreter over an InstrumentedFacility.
type Shell struct {
	facility  *InstrumentedFacility
	scanner   *bufio.Scanner
	out       io.Writer
	telemetry *TelemetryProvider
	opts      []Option
}

// NewShell reads commands from in and writes replies to out. opts are passed
// to every facility the shell creates.
func NewShell(telemetry *TelemetryProvider, in io.Reader, out io.Writer, opts ...Option) *Shell {
	return &Shell{
		scanner:   bufio.NewScanner(in),
		out:       out,
		telemetry: telemetry,
		opts:      opts,
	}
}

func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run")
	defer span.End()

	span.AddEvent("shell_started")

	for ctx.Err() == nil && s.scanner.Scan() {
		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process_command",
			trace.WithAttributes(attribute.String("command.input", input)))
		s.processCommand(cmdCtx, input)
		cmdSpan.End()
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) {
	span := trace.SpanFromContext(ctx)

	parts := strings.Fields(input)
	command := parts[0]
	span.SetAttributes(attribute.String("command.name", command))

	if command != "create_facility" && s.facility == nil {
		span.AddEvent("facility_not_created")
		s.println("Facility not created")
		return
	}

	switch command {
	case "create_facility":
		s.handleCreateFacility(parts)
	case "park":
		s.handlePark(ctx, parts)
	case "leave":
		s.handleLeave(ctx, parts)
	case "invoice":
		s.handleInvoice(ctx, parts)
	case "settle":
		s.handleSettle(ctx, parts)
	case "refund":
		s.handleRefund(ctx, parts)
	case "locate":
		s.handleLocate(ctx, parts)
	case "status":
		s.handleStatus()
	case "stats":
		s.handleStats(ctx)
	case "tickets":
		s.handleTickets()
	case "reserve", "unreserve", "out_of_service", "in_service":
		s.handleSpotAdmin(ctx, command, parts)
	default:
		span.AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		s.printf("Unknown command: %s\n", command)
	}
}

func (s *Shell) handleCreateFacility(parts []string) {
	if len(parts) < 2 {
		s.println("Usage: create_facility <capacity> [name]")
		return
	}

	capacity, err := strconv.Atoi(parts[1])
	if err != nil || capacity <= 0 {
		s.println("Invalid capacity")
		return
	}

	name := "Main Facility"
	if len(parts) > 2 {
		name = strings.Join(parts[2:], " ")
	}

	facility, err := NewInstrumentedFacility(name, capacity, s.telemetry, s.opts...)
	if err != nil {
		s.printf("Error creating facility: %s\n", err)
		return
	}

	s.facility = facility
	snap := facility.Stats()
	s.printf("Created facility %q with %d spots (%d compact, %d regular, %d large)\n",
		name, snap.Capacity, snap.Size(Compact).Total, snap.Size(Regular).Total, snap.Size(Large).Total)
}

func (s *Shell) handlePark(ctx context.Context, parts []string) {
	vehicle, err := parseVehicle(parts[1:])
	if err != nil {
		s.printf("Error: %s\n", err)
		s.println("Usage: park car <plate> [color] | park motorcycle <plate> [color] [sidecar] | park truck <plate> <weight_tons> [color]")
		return
	}

	ticket, err := s.facility.Park(ctx, vehicle)
	switch {
	case errors.Is(err, ErrUnavailable):
		s.println("Sorry, no suitable spot available")
	case errors.Is(err, ErrAlreadyParked):
		s.printf("Vehicle %s is already parked\n", vehicle.Plate())
	case err != nil:
		s.printf("Error: %s\n", err)
	default:
		s.printf("Ticket %s: spot #%d (%s)\n", ticket.ID(), ticket.SpotNumber(), ticket.SpotSize())
	}
}

// parseVehicle reads "<class> <plate> ..." arguments.
func parseVehicle(args []string) (*Vehicle, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: missing vehicle class or plate", ErrInvalidAttribute)
	}

	class, err := ParseVehicleClass(args[0])
	if err != nil {
		return nil, err
	}
	plate, rest := args[1], args[2:]

	switch class {
	case Motorcycle:
		var details Details
		sidecar := false
		for _, arg := range rest {
			if strings.EqualFold(arg, "sidecar") {
				sidecar = true
			} else {
				details.Color = arg
			}
		}
		return NewMotorcycle(plate, details, sidecar)
	case Truck:
		if len(rest) == 0 {
			return nil, fmt.Errorf("%w: truck weight is required", ErrInvalidAttribute)
		}
		weight, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid truck weight %q", ErrInvalidAttribute, rest[0])
		}
		return NewTruck(plate, Details{Color: optionalArg(rest, 1)}, weight)
	default:
		return NewCar(plate, Details{Color: optionalArg(rest, 0)})
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func (s *Shell) handleLeave(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.println("Usage: leave <plate>")
		return
	}

	ticket, err := s.facility.Unpark(ctx, parts[1])
	switch {
	case errors.Is(err, ErrNotFound):
		s.println("Not found")
	case errors.Is(err, ErrPaymentFailed):
		s.println("Payment failed, vehicle remains parked")
	case err != nil:
		s.printf("Error: %s\n", err)
	default:
		s.printf("Spot #%d is free. %d hour(s), paid %.2f\n", ticket.SpotNumber(), ticket.Hours(), ticket.Fee())
	}
}

func (s *Shell) handleInvoice(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.println("Usage: invoice <plate>")
		return
	}

	ticket, err := s.facility.Invoice(ctx, parts[1])
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Spot #%d is free. Ticket %s invoiced %.2f\n", ticket.SpotNumber(), ticket.ID(), ticket.Fee())
}

func (s *Shell) handleSettle(ctx context.Context, parts []string) {
	if len(parts) < 2 || len(parts) > 4 {
		s.println("Usage: settle <ticket_id> [discount_percent] [tax_percent]")
		return
	}

	var adj Adjustment
	for i, target := range []*float64{&adj.DiscountPercent, &adj.TaxPercent} {
		if len(parts) <= i+2 {
			break
		}
		v, err := strconv.ParseFloat(parts[i+2], 64)
		if err != nil {
			s.println("Invalid percentage")
			return
		}
		*target = v
	}

	ticket, err := s.facility.SettleWith(ctx, parts[1], adj)
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Ticket %s settled: %.2f\n", ticket.ID(), ticket.AmountPaid())
}

func (s *Shell) handleRefund(ctx context.Context, parts []string) {
	if len(parts) != 3 {
		s.println("Usage: refund <ticket_id> <amount>")
		return
	}

	amount, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		s.println("Invalid amount")
		return
	}

	ticket, err := s.facility.Refund(ctx, parts[1], amount)
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Ticket %s refunded %.2f, %.2f refundable\n", ticket.ID(), roundCents(amount), ticket.Refundable())
}

func (s *Shell) handleLocate(ctx context.Context, parts []string) {
	if len(parts) != 2 {
		s.println("Usage: locate <plate>")
		return
	}

	spot, err := s.facility.Locate(ctx, parts[1])
	if err != nil {
		s.println("Not found")
		return
	}
	s.printf("%d\n", spot.Number())
}

func (s *Shell) handleStatus() {
	occupied := s.facility.SpotsByStatus(Occupied)
	if len(occupied) == 0 {
		s.println("Facility is empty")
		return
	}

	s.println("Spot No.\tSize\tPlate\tClass\tColour")
	for _, spot := range occupied {
		v := spot.Vehicle()
		s.printf("%d\t\t%s\t%s\t%s\t%s\n", spot.Number(), spot.Size(), v.Plate(), v.Class(), v.Color)
	}
}

func (s *Shell) handleStats(ctx context.Context) {
	snap := s.facility.StatsContext(ctx)

	s.printf("Facility: %s (%s)\n", snap.Name, snap.Address)
	s.printf("Capacity: %d, occupied: %d (%.1f%%), available: %d, reserved: %d, out of service: %d\n",
		snap.Capacity, snap.Occupied, snap.OccupancyRate, snap.Available, snap.Reserved, snap.OutOfService)
	for _, size := range snap.Sizes {
		s.printf("  %-8s %d total, %d available\n", size.Size, size.Total, size.Available)
	}
	s.printf("Tickets: %d active, %d completed\n", snap.ActiveTickets, snap.CompletedTickets)
	s.printf("Revenue: %.2f, refunded: %.2f, unpaid: %.2f\n", snap.Revenue, snap.Refunded, snap.Unpaid)
}

func (s *Shell) handleTickets() {
	now := s.facility.Now()
	active, completed := s.facility.Tickets()
	for _, t := range active {
		fee, _ := t.FeeAt(now)
		s.printf("%s\t%s\tspot #%d\tactive\t%d h\t%.2f\n", t.ID(), t.Plate(), t.SpotNumber(), t.HoursAt(now), fee)
	}
	for _, t := range completed {
		paid := "unpaid"
		if t.IsPaid() {
			paid = "paid"
		}
		s.printf("%s\t%s\tspot #%d\tcompleted\t%d h\t%.2f\t%s\n", t.ID(), t.Plate(), t.SpotNumber(), t.Hours(), t.Fee(), paid)
	}
}

func (s *Shell) handleSpotAdmin(ctx context.Context, command string, parts []string) {
	if len(parts) != 2 {
		s.printf("Usage: %s <spot_number>\n", command)
		return
	}

	number, err := strconv.Atoi(parts[1])
	if err != nil {
		s.println("Invalid spot number")
		return
	}

	var spot Spot
	switch command {
	case "reserve":
		spot, err = s.facility.Reserve(ctx, number)
	case "unreserve":
		spot, err = s.facility.CancelReservation(ctx, number)
	case "out_of_service":
		spot, err = s.facility.MarkOutOfService(ctx, number)
	default:
		spot, err = s.facility.ReturnToService(ctx, number)
	}
	if err != nil {
		s.printf("Error: %s\n", err)
		return
	}
	s.printf("Spot #%d is now %s\n", spot.Number(), spot.Status())
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) printf(format string, a ...any) {
	fmt.Fprintf(s.out, format, a...)
}
