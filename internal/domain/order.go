package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidPaymentMethod = errors.New("invalid payment method")

type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodStripe, PaymentMethodPayPal:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
}

// OrderSnapshot is the pricing breakdown shown on the checkout summary.
type OrderSnapshot struct {
	Items    []LineItem      `json:"items"`
	Subtotal int64           `json:"subtotal"`
	TaxRate  decimal.Decimal `json:"tax_rate"`
	Tax      int64           `json:"tax"`
	Total    int64           `json:"total"`
}

func (s OrderSnapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

type OrderStatus string

const OrderStatusCompleted OrderStatus = "completed"

// Order is an immutable record of a completed purchase.
type Order struct {
	ID            uuid.UUID     `json:"id"`
	UserID        string        `json:"user_id,omitempty"`
	Items         []LineItem    `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	Tax           int64         `json:"tax"`
	Total         int64         `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	TransactionID string        `json:"transaction_id"`
	Status        OrderStatus   `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
