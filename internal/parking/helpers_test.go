package parking

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) ProcessPayment(ctx context.Context, amount float64) (bool, error) {
	args := m.Called(ctx, amount)
	return args.Bool(0), args.Error(1)
}

// MockRefundingProcessor also implements Refunder.
type MockRefundingProcessor struct {
	MockPaymentProcessor
}

func (m *MockRefundingProcessor) Refund(ctx context.Context, amount float64) (bool, error) {
	args := m.Called(ctx, amount)
	return args.Bool(0), args.Error(1)
}

func mustCar(plate string) *Vehicle {
	v, err := NewCar(plate, Details{Color: "White", Brand: "Toyota", Model: "Corolla", Year: 2020})
	if err != nil {
		panic(err)
	}
	return v
}

func mustMotorcycle(plate string, sidecar bool) *Vehicle {
	v, err := NewMotorcycle(plate, Details{Color: "Black", Brand: "Honda", Model: "CB500", Year: 2019}, sidecar)
	if err != nil {
		panic(err)
	}
	return v
}

func mustTruck(plate string, weight float64) *Vehicle {
	v, err := NewTruck(plate, Details{Color: "Blue", Brand: "Volvo", Model: "FH", Year: 2018}, weight)
	if err != nil {
		panic(err)
	}
	return v
}
