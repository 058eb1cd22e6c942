package parking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketBookIssue(t *testing.T) {
	book := NewTicketBook(NewTicketIDGenerator("TKT"))
	car := mustCar("KA01")

	ticket, err := book.Issue(car, newSpot(1, Regular), testEpoch)
	require.NoError(t, err)
	assert.Equal(t, "TKT-000001", ticket.ID())

	found, ok := book.Active("ka01")
	require.True(t, ok)
	assert.Same(t, ticket, found)

	byID, ok := book.FindByID("TKT-000001")
	require.True(t, ok)
	assert.Same(t, ticket, byID)

	_, err = book.Issue(car, newSpot(2, Regular), testEpoch)
	assert.ErrorIs(t, err, ErrAlreadyParked)
	assert.Equal(t, 1, book.ActiveCount())

	_, err = book.Issue(nil, newSpot(2, Regular), testEpoch)
	assert.ErrorIs(t, err, ErrInvalidAttribute)
}

func TestTicketBookArchive(t *testing.T) {
	book := NewTicketBook(NewTicketIDGenerator("TKT"))
	ticket, err := book.Issue(mustCar("KA01"), newSpot(1, Regular), testEpoch)
	require.NoError(t, err)

	assert.ErrorIs(t, book.archive(ticket), ErrInvalidTransition)

	require.NoError(t, ticket.complete(testEpoch.Add(90*time.Minute)))
	require.NoError(t, book.archive(ticket))

	_, ok := book.Active("KA01")
	assert.False(t, ok)
	assert.Equal(t, 0, book.ActiveCount())
	assert.Equal(t, 1, book.CompletedCount())

	_, ok = book.FindByID(ticket.ID())
	assert.True(t, ok, "completed tickets stay addressable by id")

	assert.ErrorIs(t, book.archive(ticket), ErrNotFound)
}

func TestTicketBookRevenue(t *testing.T) {
	book := NewTicketBook(NewTicketIDGenerator("TKT"))

	paid, err := book.Issue(mustCar("C1"), newSpot(1, Regular), testEpoch)
	require.NoError(t, err)
	unpaid, err := book.Issue(mustMotorcycle("M1", true), newSpot(2, Compact), testEpoch)
	require.NoError(t, err)
	active, err := book.Issue(mustCar("C2"), newSpot(3, Regular), testEpoch)
	require.NoError(t, err)

	require.NoError(t, paid.complete(testEpoch.Add(2*time.Hour)))
	require.NoError(t, paid.markPaid(paid.Fee()))
	require.NoError(t, book.archive(paid))
	require.NoError(t, unpaid.complete(testEpoch.Add(3*time.Hour)))
	require.NoError(t, book.archive(unpaid))

	assert.Equal(t, 4.0, book.Revenue())
	assert.Equal(t, 4.5, book.Unpaid())

	activeTickets := book.ActiveTickets()
	require.Len(t, activeTickets, 1)
	assert.Equal(t, active.ID(), activeTickets[0].ID())

	completed := book.CompletedTickets()
	require.Len(t, completed, 2)
	assert.Equal(t, "TKT-000001", completed[0].ID())
	assert.Equal(t, "TKT-000002", completed[1].ID())
}

func TestTicketBookOrdersPastSixDigits(t *testing.T) {
	ids := NewTicketIDGenerator("TKT")
	ids.issued = 999998
	book := NewTicketBook(ids)

	var issued []string
	for i, plate := range []string{"C1", "C2", "C3"} {
		ticket, err := book.Issue(mustCar(plate), newSpot(i+1, Regular), testEpoch)
		require.NoError(t, err)
		issued = append(issued, ticket.ID())
	}
	require.Equal(t, []string{"TKT-999999", "TKT-1000000", "TKT-1000001"}, issued)

	var listed []string
	for _, ticket := range book.ActiveTickets() {
		listed = append(listed, ticket.ID())
	}
	assert.Equal(t, issued, listed)
}
