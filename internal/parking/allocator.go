package parking

import "fmt"

// RequiredSize is the preferred spot size for a vehicle class, or zero for an
// unknown class.
func RequiredSize(class VehicleClass) SpotSize {
	switch class {
	case Motorcycle:
		return Compact
	case Car:
		return Regular
	case Truck:
		return Large
	default:
		return 0
	}
}

// fallbackSizes lists the sizes tried for a required size, smallest first.
// Nothing ever falls back to a smaller spot.
var fallbackSizes = map[SpotSize][]SpotSize{
	Compact: {Compact, Regular, Large},
	Regular: {Regular, Large},
	Large:   {Large},
}

// Allocator picks and occupies a spot for a vehicle.
type Allocator struct {
	inventory *Inventory
}

func NewAllocator(inventory *Inventory) *Allocator {
	return &Allocator{inventory: inventory}
}

// Select finds the spot Allocate would use without occupying it.
func (a *Allocator) Select(vehicle *Vehicle) (*Spot, error) {
	if vehicle == nil {
		return nil, fmt.Errorf("%w: nil vehicle", ErrInvalidAttribute)
	}
	if !vehicle.Class().valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %d", ErrInvalidAttribute, vehicle.Class())
	}

	if a.inventory.FindByVehicle(vehicle.Plate()) != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyParked, vehicle.Plate())
	}

	for _, size := range fallbackSizes[RequiredSize(vehicle.Class())] {
		spot := a.inventory.FindAvailable(size)
		if spot != nil && spot.CanFit(vehicle.Class()) {
			return spot, nil
		}
	}

	return nil, fmt.Errorf("%w: no %s-compatible spot for %s",
		ErrUnavailable, RequiredSize(vehicle.Class()), vehicle.Plate())
}

// Allocate selects a spot and marks it occupied by vehicle. On failure the
// inventory is left untouched.
func (a *Allocator) Allocate(vehicle *Vehicle) (*Spot, error) {
	spot, err := a.Select(vehicle)
	if err != nil {
		return nil, err
	}
	if err := a.inventory.Occupy(spot, vehicle); err != nil {
		return nil, err
	}
	return spot, nil
}
