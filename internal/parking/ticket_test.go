package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillableHours(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int
	}{
		{"zero", 0, 0},
		{"negative", -time.Minute, 0},
		{"one second", time.Second, 1},
		{"exactly one hour", time.Hour, 1},
		{"one hour and a second", time.Hour + time.Second, 2},
		{"three and a half hours", 3*time.Hour + 30*time.Minute, 4},
		{"one day", 24 * time.Hour, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billableHours(tt.elapsed))
		})
	}
}

func newTestTicket(v *Vehicle) *Ticket {
	return newTicket("TKT-000001", 1, v, newSpot(7, Regular), testEpoch)
}

func TestTicketQuotesWhileActive(t *testing.T) {
	ticket := newTestTicket(mustCar("C1"))

	assert.True(t, ticket.IsActive())
	assert.False(t, ticket.IsPaid())
	assert.Equal(t, 7, ticket.SpotNumber())
	assert.Equal(t, Regular, ticket.SpotSize())

	_, ok := ticket.ExitTime()
	assert.False(t, ok)

	now := testEpoch.Add(2*time.Hour + time.Minute)
	assert.Equal(t, 3, ticket.HoursAt(now))
	fee, err := ticket.FeeAt(now)
	require.NoError(t, err)
	assert.Equal(t, 6.0, fee)

	// quoting does not fix anything
	assert.Equal(t, 0, ticket.Hours())
	assert.Equal(t, 0.0, ticket.Fee())
}

func TestTicketComplete(t *testing.T) {
	ticket := newTestTicket(mustTruck("T1", 3))
	exit := testEpoch.Add(4 * time.Hour)

	require.NoError(t, ticket.complete(exit))

	assert.Equal(t, TicketCompleted, ticket.State())
	got, ok := ticket.ExitTime()
	assert.True(t, ok)
	assert.Equal(t, exit, got)
	assert.Equal(t, 4, ticket.Hours())
	assert.Equal(t, 32.0, ticket.Fee())

	// a completed ticket keeps its fixed figures
	later := exit.Add(10 * time.Hour)
	assert.Equal(t, 4, ticket.HoursAt(later))
	fee, err := ticket.FeeAt(later)
	require.NoError(t, err)
	assert.Equal(t, 32.0, fee)

	err = ticket.complete(later)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, exit, ticket.exitTime)
}

func TestTicketCompleteAtEntryBillsNothing(t *testing.T) {
	ticket := newTestTicket(mustCar("C1"))

	require.NoError(t, ticket.complete(testEpoch))
	assert.Equal(t, 0, ticket.Hours())
	assert.Equal(t, 0.0, ticket.Fee())
}

func TestTicketMarkPaid(t *testing.T) {
	ticket := newTestTicket(mustCar("C1"))

	assert.ErrorIs(t, ticket.markPaid(2), ErrInvalidTransition)
	assert.False(t, ticket.IsPaid())

	require.NoError(t, ticket.complete(testEpoch.Add(time.Hour)))
	require.NoError(t, ticket.markPaid(1.8))
	assert.True(t, ticket.IsPaid())
	assert.Equal(t, 2.0, ticket.Fee())
	assert.Equal(t, 1.8, ticket.AmountPaid())
	assert.Equal(t, 1.8, ticket.Refundable())

	assert.ErrorIs(t, ticket.markPaid(1.8), ErrInvalidTransition)
}

func TestTicketIDGenerator(t *testing.T) {
	ids := NewTicketIDGenerator("TKT")

	assert.Equal(t, "TKT-000001", ids.Next())
	assert.Equal(t, "TKT-000002", ids.Next())
	assert.Equal(t, 2, ids.Issued())

	id, seq := ids.next()
	assert.Equal(t, "TKT-000003", id)
	assert.Equal(t, 3, seq)

	other := NewTicketIDGenerator("LOT")
	assert.Equal(t, "LOT-000001", other.Next())
	assert.Equal(t, 3, ids.Issued())
}
