package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parking-facility/internal/parking"
)

// FacilityCollector exposes a Stats snapshot as Prometheus metrics at scrape
// time. It reports nothing until a facility exists.
type FacilityCollector struct {
	snapshot func() (parking.Snapshot, bool)

	capacity      *prometheus.Desc
	spots         *prometheus.Desc
	sizeAvailable *prometheus.Desc
	occupancyRate *prometheus.Desc
	tickets       *prometheus.Desc
	revenue       *prometheus.Desc
	refunded      *prometheus.Desc
	unpaid        *prometheus.Desc
}

func NewFacilityCollector(snapshot func() (parking.Snapshot, bool)) *FacilityCollector {
	return &FacilityCollector{
		snapshot: snapshot,
		capacity: prometheus.NewDesc("parking_facility_capacity_spots",
			"Total number of spots.", []string{"facility"}, nil),
		spots: prometheus.NewDesc("parking_facility_spots",
			"Spots by status.", []string{"facility", "status"}, nil),
		sizeAvailable: prometheus.NewDesc("parking_facility_available_spots",
			"Available spots by size.", []string{"facility", "size"}, nil),
		occupancyRate: prometheus.NewDesc("parking_facility_occupancy_ratio",
			"Occupied share of capacity, 0 to 1.", []string{"facility"}, nil),
		tickets: prometheus.NewDesc("parking_facility_tickets",
			"Tickets by state.", []string{"facility", "state"}, nil),
		revenue: prometheus.NewDesc("parking_facility_revenue_total",
			"Fees collected from paid tickets.", []string{"facility"}, nil),
		refunded: prometheus.NewDesc("parking_facility_refunded_total",
			"Amounts returned on paid tickets.", []string{"facility"}, nil),
		unpaid: prometheus.NewDesc("parking_facility_unpaid_amount",
			"Fees of completed tickets awaiting settlement.", []string{"facility"}, nil),
	}
}

func (c *FacilityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.spots
	ch <- c.sizeAvailable
	ch <- c.occupancyRate
	ch <- c.tickets
	ch <- c.revenue
	ch <- c.refunded
	ch <- c.unpaid
}

func (c *FacilityCollector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.snapshot()
	if !ok {
		return
	}
	name := snap.Name

	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, append([]string{name}, labels...)...)
	}

	gauge(c.capacity, float64(snap.Capacity))
	gauge(c.spots, float64(snap.Available), parking.Available.String())
	gauge(c.spots, float64(snap.Occupied), parking.Occupied.String())
	gauge(c.spots, float64(snap.Reserved), parking.Reserved.String())
	gauge(c.spots, float64(snap.OutOfService), parking.OutOfService.String())
	for _, size := range snap.Sizes {
		gauge(c.sizeAvailable, float64(size.Available), size.Size.String())
	}
	gauge(c.occupancyRate, snap.OccupancyRate/100)
	gauge(c.tickets, float64(snap.ActiveTickets), parking.TicketActive.String())
	gauge(c.tickets, float64(snap.CompletedTickets), parking.TicketCompleted.String())
	gauge(c.unpaid, snap.Unpaid)

	ch <- prometheus.MustNewConstMetric(c.revenue, prometheus.CounterValue, snap.Revenue, name)
	ch <- prometheus.MustNewConstMetric(c.refunded, prometheus.CounterValue, snap.Refunded, name)
}

// NewRegistry registers the facility collector next to the Go runtime and
// process collectors.
func NewRegistry(h *Handler) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewFacilityCollector(h.snapshot),
	)
	return reg
}
