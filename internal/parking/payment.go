package parking

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PaymentProcessor charges for a completed stay. ok false with a nil error is
// a decline; a non-nil error means the processor could not be reached.
type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, amount float64) (ok bool, err error)
}

// Refunder is implemented by processors that can return money.
type Refunder interface {
	Refund(ctx context.Context, amount float64) (ok bool, err error)
}

// TransactionRecorder is implemented by processors that keep their last
// transaction for audit logging.
type TransactionRecorder interface {
	LastTransaction() Transaction
}

// Transaction is the outcome of the last call to a SimulatedProcessor.
type Transaction struct {
	ID     string
	Amount float64
	Status string
}

// SimulatedProcessor accepts every positive amount unless told to decline.
type SimulatedProcessor struct {
	mu      sync.Mutex
	decline bool
	last    Transaction
	settled float64
}

func NewSimulatedProcessor() *SimulatedProcessor {
	return &SimulatedProcessor{
		last: Transaction{Status: "no transactions yet"},
	}
}

// SetDecline makes every following payment fail until switched back.
func (p *SimulatedProcessor) SetDecline(decline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decline = decline
}

func (p *SimulatedProcessor) ProcessPayment(ctx context.Context, amount float64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx := Transaction{ID: uuid.NewString(), Amount: roundCents(amount)}
	switch {
	case amount <= 0:
		tx.Status = "FAILED - invalid amount"
		p.last = tx
		return false, nil
	case p.decline:
		tx.Status = "FAILED - declined"
		p.last = tx
		return false, nil
	}

	tx.Status = fmt.Sprintf("SUCCESS - paid %.2f", tx.Amount)
	p.last = tx
	p.settled = roundCents(p.settled + tx.Amount)
	return true, nil
}

// Refund returns money from the balance collected so far.
func (p *SimulatedProcessor) Refund(ctx context.Context, amount float64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tx := Transaction{ID: uuid.NewString(), Amount: roundCents(amount)}
	if amount <= 0 || amount > p.settled {
		tx.Status = "REFUND FAILED"
		p.last = tx
		return false, nil
	}

	tx.Status = fmt.Sprintf("REFUNDED - %.2f", tx.Amount)
	p.last = tx
	p.settled = roundCents(p.settled - amount)
	return true, nil
}

func (p *SimulatedProcessor) LastTransaction() Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// WithDiscount reduces amount by percent, clamped to [0, 100].
func WithDiscount(amount, percent float64) float64 {
	percent = clampPercent(percent)
	return roundCents(amount * (1 - percent/100))
}

// WithTax adds percent tax to amount. Negative rates are treated as zero.
func WithTax(amount, percent float64) float64 {
	if percent < 0 {
		percent = 0
	}
	return roundCents(amount * (1 + percent/100))
}

// Adjustment is a discount and a tax applied to a fee before it is charged.
// The discount is taken first.
type Adjustment struct {
	DiscountPercent float64
	TaxPercent      float64
}

func (a Adjustment) Apply(fee float64) float64 {
	return WithTax(WithDiscount(fee, a.DiscountPercent), a.TaxPercent)
}

func (a Adjustment) validate() error {
	if !(a.DiscountPercent >= 0 && a.DiscountPercent <= 100) {
		return fmt.Errorf("%w: discount %v%% outside [0, 100]", ErrInvalidArgument, a.DiscountPercent)
	}
	if !(a.TaxPercent >= 0 && a.TaxPercent <= 100) {
		return fmt.Errorf("%w: tax %v%% outside [0, 100]", ErrInvalidArgument, a.TaxPercent)
	}
	return nil
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
