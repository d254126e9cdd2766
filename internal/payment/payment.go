// Package payment is the checkout's gateway capability and its simulated implementation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/inviteu/internal/domain"
)

var (
	ErrDeclined    = errors.New("payment declined")
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// DefaultDelay is the artificial settlement time of the simulator.
const DefaultDelay = 2 * time.Second

type Charge struct {
	OrderID string
	Amount  int64
	Method  domain.PaymentMethod
}

type Result struct {
	TransactionID string
	Method        domain.PaymentMethod
}

// Gateway charges an order. A real gateway can replace the simulator without touching checkout.
type Gateway interface {
	Charge(ctx context.Context, charge Charge) (Result, error)
}

// Simulator settles every charge successfully after Delay.
type Simulator struct {
	Delay time.Duration
	Now   func() time.Time
}

func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{Delay: delay, Now: time.Now}
}

func (s *Simulator) Charge(ctx context.Context, charge Charge) (Result, error) {
	if charge.Amount <= 0 {
		return Result{}, fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}

	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("charge %s interrupted: %w", charge.OrderID, ctx.Err())
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return Result{
		TransactionID: fmt.Sprintf("%s_%d", charge.Method, now().UnixMilli()),
		Method:        charge.Method,
	}, nil
}
