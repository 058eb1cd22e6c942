package parking

import "fmt"

type SpotSize int

const (
	Compact SpotSize = iota + 1
	Regular
	Large
)

var spotSizes = []SpotSize{Compact, Regular, Large}

func (s SpotSize) String() string {
	switch s {
	case Compact:
		return "compact"
	case Regular:
		return "regular"
	case Large:
		return "large"
	default:
		return "unknown"
	}
}

func (s SpotSize) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type SpotStatus int

const (
	Available SpotStatus = iota + 1
	Occupied
	Reserved
	OutOfService
)

func (s SpotStatus) String() string {
	switch s {
	case Available:
		return "available"
	case Occupied:
		return "occupied"
	case Reserved:
		return "reserved"
	case OutOfService:
		return "out_of_service"
	default:
		return "unknown"
	}
}

func (s SpotStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Spot is a single parking location. Number and size are fixed at
// construction; only the status and the occupant change. A Spot value handed
// out by Inventory or Facility is a copy.
type Spot struct {
	number  int
	size    SpotSize
	status  SpotStatus
	vehicle *Vehicle
}

func newSpot(number int, size SpotSize) *Spot {
	return &Spot{
		number: number,
		size:   size,
		status: Available,
	}
}

func (s Spot) Number() int        { return s.number }
func (s Spot) Size() SpotSize     { return s.size }
func (s Spot) Status() SpotStatus { return s.status }

// Vehicle returns the occupant, nil unless the spot is Occupied.
func (s Spot) Vehicle() *Vehicle { return s.vehicle }

func (s Spot) IsAvailable() bool { return s.status == Available }
func (s Spot) IsOccupied() bool  { return s.status == Occupied }

// CanFit reports size compatibility: compact spots take motorcycles, regular
// spots take motorcycles and cars, large spots take everything.
func (s Spot) CanFit(class VehicleClass) bool {
	switch s.size {
	case Compact:
		return class == Motorcycle
	case Regular:
		return class == Motorcycle || class == Car
	case Large:
		return class == Motorcycle || class == Car || class == Truck
	default:
		return false
	}
}

func (s Spot) String() string {
	occupant := "empty"
	switch s.status {
	case Occupied:
		occupant = s.vehicle.Plate()
	case Reserved:
		occupant = "reserved"
	case OutOfService:
		occupant = "out of service"
	}
	return fmt.Sprintf("Spot #%d [%s] %s (%s)", s.number, s.size, s.status, occupant)
}

func (s *Spot) occupy(vehicle *Vehicle) error {
	if vehicle == nil {
		return fmt.Errorf("%w: nil vehicle", ErrInvalidAttribute)
	}
	if s.status != Available {
		return s.transitionError("occupy")
	}
	s.vehicle = vehicle
	s.status = Occupied
	return nil
}

func (s *Spot) release() (*Vehicle, error) {
	if s.status != Occupied {
		return nil, s.transitionError("release")
	}
	vehicle := s.vehicle
	s.vehicle = nil
	s.status = Available
	return vehicle, nil
}

func (s *Spot) reserve() error {
	if s.status != Available {
		return s.transitionError("reserve")
	}
	s.status = Reserved
	return nil
}

func (s *Spot) cancelReservation() error {
	if s.status != Reserved {
		return s.transitionError("cancel reservation on")
	}
	s.status = Available
	return nil
}

// markOutOfService refuses occupied spots so a vehicle is never dropped.
func (s *Spot) markOutOfService() error {
	if s.status != Available && s.status != Reserved {
		return s.transitionError("take out of service")
	}
	s.status = OutOfService
	return nil
}

func (s *Spot) returnToService() error {
	if s.status != OutOfService {
		return s.transitionError("return to service")
	}
	s.status = Available
	return nil
}

func (s *Spot) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s spot #%d in status %s", ErrInvalidTransition, action, s.number, s.status)
}
