package checkout

import "errors"

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrNotAuthenticated      = errors.New("user is not authenticated")
	ErrAlreadyProcessing     = errors.New("payment already in progress")
	ErrIllegalTransition     = errors.New("illegal checkout transition")
	ErrPaymentMethodRequired = errors.New("payment method not selected")
	ErrPaymentFailed         = errors.New("payment failed")
)
