package domain

type CheckoutState string

const (
	CheckoutStateIdle                  CheckoutState = "idle"
	CheckoutStateSummaryLoaded         CheckoutState = "summary_loaded"
	CheckoutStatePaymentMethodSelected CheckoutState = "payment_method_selected"
	CheckoutStateProcessing            CheckoutState = "processing"
	CheckoutStateCompleted             CheckoutState = "completed"
	CheckoutStateFailed                CheckoutState = "failed"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle: {
		CheckoutStateSummaryLoaded,
	},
	CheckoutStateSummaryLoaded: {
		CheckoutStateIdle,
		CheckoutStateSummaryLoaded,
		CheckoutStatePaymentMethodSelected,
	},
	CheckoutStatePaymentMethodSelected: {
		CheckoutStateIdle,
		CheckoutStateSummaryLoaded,
		CheckoutStatePaymentMethodSelected,
		CheckoutStateProcessing,
	},
	CheckoutStateProcessing: {
		CheckoutStateCompleted,
		CheckoutStateFailed,
	},
	// retry goes back through method selection
	CheckoutStateFailed: {
		CheckoutStateIdle,
		CheckoutStateSummaryLoaded,
		CheckoutStatePaymentMethodSelected,
	},
	CheckoutStateCompleted: {
		CheckoutStateIdle,
	},
}

// CanTransitionTo reports whether the checkout flow may move from one state to another.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, s := range checkoutTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted || s == CheckoutStateFailed
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
