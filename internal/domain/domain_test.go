package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutState
		want     bool
	}{
		{CheckoutStateIdle, CheckoutStateSummaryLoaded, true},
		{CheckoutStateIdle, CheckoutStateProcessing, false},
		{CheckoutStateSummaryLoaded, CheckoutStatePaymentMethodSelected, true},
		{CheckoutStateSummaryLoaded, CheckoutStateProcessing, false},
		{CheckoutStatePaymentMethodSelected, CheckoutStatePaymentMethodSelected, true},
		{CheckoutStatePaymentMethodSelected, CheckoutStateProcessing, true},
		{CheckoutStateProcessing, CheckoutStateCompleted, true},
		{CheckoutStateProcessing, CheckoutStateFailed, true},
		{CheckoutStateProcessing, CheckoutStateIdle, false},
		{CheckoutStateFailed, CheckoutStatePaymentMethodSelected, true},
		{CheckoutStateFailed, CheckoutStateProcessing, false},
		{CheckoutStateCompleted, CheckoutStateSummaryLoaded, false},
		{CheckoutStateCompleted, CheckoutStateIdle, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, CheckoutStateCompleted.IsTerminal())
	assert.True(t, CheckoutStateFailed.IsTerminal())
	assert.False(t, CheckoutStateProcessing.IsTerminal())
}

func TestParseItemKind(t *testing.T) {
	kind, err := ParseItemKind("package")
	require.NoError(t, err)
	assert.Equal(t, KindPackage, kind)

	_, err = ParseItemKind("Template")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestParsePaymentMethod(t *testing.T) {
	method, err := ParsePaymentMethod("paypal")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodPayPal, method)

	_, err = ParsePaymentMethod("")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestLineItem(t *testing.T) {
	item := LineItem{ID: "premium", Kind: KindPackage, UnitPrice: 799, Quantity: 2}

	assert.True(t, item.Matches("premium", KindPackage))
	assert.False(t, item.Matches("premium", KindTemplate))
	assert.Equal(t, int64(1598), item.Subtotal())
}

func TestCopyItems(t *testing.T) {
	assert.NotNil(t, CopyItems(nil))

	src := []LineItem{{ID: "a", Quantity: 1}}
	dst := CopyItems(src)
	dst[0].Quantity = 5
	assert.Equal(t, 1, src[0].Quantity)
}
