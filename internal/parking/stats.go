package parking

// SizeStats is the spot count and availability for one size class.
type SizeStats struct {
	Size      SpotSize `json:"size"`
	Total     int      `json:"total"`
	Available int      `json:"available"`
}

// Snapshot is a consistent read-only view of the facility.
type Snapshot struct {
	Name             string      `json:"name"`
	Address          string      `json:"address"`
	Capacity         int         `json:"capacity"`
	Available        int         `json:"available"`
	Occupied         int         `json:"occupied"`
	Reserved         int         `json:"reserved"`
	OutOfService     int         `json:"out_of_service"`
	OccupancyRate    float64     `json:"occupancy_rate"`
	Sizes            []SizeStats `json:"sizes"`
	ActiveTickets    int         `json:"active_tickets"`
	CompletedTickets int         `json:"completed_tickets"`
	TicketsIssued    int         `json:"tickets_issued"`
	Revenue          float64     `json:"revenue"`
	Refunded         float64     `json:"refunded"`
	Unpaid           float64     `json:"unpaid"`
}

func (s Snapshot) IsFull() bool  { return s.Available == 0 }
func (s Snapshot) IsEmpty() bool { return s.Occupied == 0 }

// Size returns the stats for one size class.
func (s Snapshot) Size(size SpotSize) SizeStats {
	for _, st := range s.Sizes {
		if st.Size == size {
			return st
		}
	}
	return SizeStats{Size: size}
}

// Stats folds the inventory and ticket book into a Snapshot under the read
// lock, so counts never mix pre- and post-mutation state.
func (f *Facility) Stats() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	inv := f.inventory
	snap := Snapshot{
		Name:             f.name,
		Address:          f.address,
		Capacity:         inv.Capacity(),
		Available:        inv.CountAllAvailable(),
		Occupied:         inv.CountOccupied(),
		Reserved:         inv.CountByStatus(Reserved),
		OutOfService:     inv.CountByStatus(OutOfService),
		ActiveTickets:    f.tickets.ActiveCount(),
		CompletedTickets: f.tickets.CompletedCount(),
		TicketsIssued:    f.tickets.ids.Issued(),
		Revenue:          f.tickets.Revenue(),
		Refunded:         f.tickets.Refunded(),
		Unpaid:           f.tickets.Unpaid(),
	}
	if snap.Capacity > 0 {
		snap.OccupancyRate = float64(snap.Occupied) * 100 / float64(snap.Capacity)
	}
	for _, size := range spotSizes {
		snap.Sizes = append(snap.Sizes, SizeStats{
			Size:      size,
			Total:     inv.CountBySize(size),
			Available: inv.CountAvailable(size),
		})
	}

	return snap
}
