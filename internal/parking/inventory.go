package parking

import (
	"fmt"
	"sort"
)

// Layout is the number of spots of each size. Spots are numbered from 1 in
// compact, regular, large order.
type Layout struct {
	Compact int
	Regular int
	Large   int
}

// DefaultLayout splits capacity 40% compact, 40% regular and gives the
// remainder to large spots.
func DefaultLayout(capacity int) Layout {
	compact := capacity * 4 / 10
	regular := capacity * 4 / 10
	return Layout{
		Compact: compact,
		Regular: regular,
		Large:   capacity - compact - regular,
	}
}

func (l Layout) Total() int {
	return l.Compact + l.Regular + l.Large
}

// validate rejects negative counts and totals above maxSpots. Counts are
// summed one at a time against the limit so the total cannot overflow.
func (l Layout) validate(maxSpots int) error {
	if l.Compact < 0 || l.Regular < 0 || l.Large < 0 {
		return fmt.Errorf("%w: negative spot count in layout %+v", ErrInvalidAttribute, l)
	}
	remaining := maxSpots
	for _, count := range []int{l.Compact, l.Regular, l.Large} {
		if count > remaining {
			return fmt.Errorf("%w: layout %+v exceeds %d spots", ErrInvalidAttribute, l, maxSpots)
		}
		remaining -= count
	}
	return nil
}

// Inventory owns the fixed set of spots. It is not safe for concurrent use;
// Facility serialises access to it.
type Inventory struct {
	spots []*Spot
}

// NewInventory numbers the layout's spots. maxSpots bounds the total.
func NewInventory(layout Layout, maxSpots int) (*Inventory, error) {
	if err := layout.validate(maxSpots); err != nil {
		return nil, err
	}

	spots := make([]*Spot, 0, layout.Total())
	number := 1
	for _, group := range []struct {
		size  SpotSize
		count int
	}{
		{Compact, layout.Compact},
		{Regular, layout.Regular},
		{Large, layout.Large},
	} {
		for i := 0; i < group.count; i++ {
			spots = append(spots, newSpot(number, group.size))
			number++
		}
	}

	return &Inventory{spots: spots}, nil
}

func (inv *Inventory) Capacity() int {
	return len(inv.spots)
}

// FindAvailable returns the lowest numbered available spot of exactly size.
func (inv *Inventory) FindAvailable(size SpotSize) *Spot {
	for _, spot := range inv.spots {
		if spot.IsAvailable() && spot.size == size {
			return spot
		}
	}
	return nil
}

// FindAnyAvailable returns the lowest numbered available spot of any size.
func (inv *Inventory) FindAnyAvailable() *Spot {
	for _, spot := range inv.spots {
		if spot.IsAvailable() {
			return spot
		}
	}
	return nil
}

func (inv *Inventory) FindByVehicle(plate string) *Spot {
	plate = NormalizePlate(plate)
	for _, spot := range inv.spots {
		if spot.IsOccupied() && spot.vehicle.Plate() == plate {
			return spot
		}
	}
	return nil
}

func (inv *Inventory) FindByNumber(number int) *Spot {
	if number < 1 || number > len(inv.spots) {
		return nil
	}
	return inv.spots[number-1]
}

func (inv *Inventory) CountAvailable(size SpotSize) int {
	return inv.count(func(s *Spot) bool { return s.IsAvailable() && s.size == size })
}

func (inv *Inventory) CountAllAvailable() int {
	return inv.CountByStatus(Available)
}

func (inv *Inventory) CountOccupied() int {
	return inv.CountByStatus(Occupied)
}

func (inv *Inventory) CountByStatus(status SpotStatus) int {
	return inv.count(func(s *Spot) bool { return s.status == status })
}

func (inv *Inventory) CountBySize(size SpotSize) int {
	return inv.count(func(s *Spot) bool { return s.size == size })
}

func (inv *Inventory) count(match func(*Spot) bool) int {
	n := 0
	for _, spot := range inv.spots {
		if match(spot) {
			n++
		}
	}
	return n
}

// Occupy binds vehicle to spot. It fails with ErrInvalidTransition unless the
// spot is available.
func (inv *Inventory) Occupy(spot *Spot, vehicle *Vehicle) error {
	if spot == nil {
		return fmt.Errorf("%w: nil spot", ErrInvalidAttribute)
	}
	return spot.occupy(vehicle)
}

// Release frees an occupied spot and returns the vehicle that left.
func (inv *Inventory) Release(spot *Spot) (*Vehicle, error) {
	if spot == nil {
		return nil, fmt.Errorf("%w: nil spot", ErrInvalidAttribute)
	}
	return spot.release()
}

// Snapshot copies every spot in number order.
func (inv *Inventory) Snapshot() []Spot {
	return inv.filter(func(*Spot) bool { return true })
}

func (inv *Inventory) SpotsByStatus(status SpotStatus) []Spot {
	return inv.filter(func(s *Spot) bool { return s.status == status })
}

func (inv *Inventory) filter(match func(*Spot) bool) []Spot {
	var out []Spot
	for _, spot := range inv.spots {
		if match(spot) {
			out = append(out, *spot)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].number < out[j].number
	})

	return out
}
