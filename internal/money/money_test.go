package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTax(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		rate     string
		want     int64
	}{
		{"rounds up", 299, "0.10", 30},
		{"exact", 500, "0.10", 50},
		{"half rounds away from zero", 5, "0.10", 1},
		{"rounds down", 199, "0.21", 42},
		{"zero subtotal", 0, "0.21", 0},
		{"zero rate", 799, "0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tax(tt.subtotal, decimal.RequireFromString(tt.rate)))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "€0", Format(0))
	assert.Equal(t, "€299", Format(299))
	assert.Equal(t, "€12.345", Format(12345))
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "10%", FormatRate(decimal.RequireFromString("0.10")))
	assert.Equal(t, "21%", FormatRate(decimal.RequireFromString("0.21")))
}
