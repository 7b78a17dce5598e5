package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"whole euros", "10.00", "EUR", 1000, false},
		{"cents only", "0.01", "EUR", 1, false},
		{"no decimals", "25", "USD", 2500, false},
		{"single decimal", "9.5", "GBP", 950, false},
		{"zero", "0", "EUR", 0, false},
		{"zero-decimal currency", "1000", "JPY", 1000, false},
		{"zero-decimal lowercase", "500", "krw", 500, false},
		{"three-decimal currency", "1.234", "KWD", 1234, false},
		{"unknown currency defaults to cents", "10.00", "XYZ", 1000, false},
		{"sub-cent precision", "1.001", "EUR", 0, true},
		{"fractional yen", "10.5", "JPY", 0, true},
		{"sub-fils precision", "1.2345", "KWD", 0, true},
		{"not a number", "ten", "EUR", 0, true},
		{"empty", "", "EUR", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.amount, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Units)
			assert.Equal(t, tt.currency, got.Currency)
		})
	}
}

func TestMoneyMinorUnits(t *testing.T) {
	assert.Equal(t, "1000", Money{Units: 1000, Currency: "EUR"}.MinorUnits())
	assert.Equal(t, "0", Money{}.MinorUnits())
}

func TestCreditCardExpiryDate(t *testing.T) {
	tests := []struct {
		name  string
		month int
		year  int
		want  string
	}{
		{"single digit month", 5, 2027, "0527"},
		{"double digit month", 12, 2030, "1230"},
		{"january", 1, 2026, "0126"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := CreditCard{Month: tt.month, Year: tt.year}
			assert.Equal(t, tt.want, card.ExpiryDate())
		})
	}
}

func TestReference(t *testing.T) {
	ref := Reference("3014726;SAL")
	assert.Equal(t, "3014726", ref.TransactionID())
	assert.True(t, ref.IsTransaction())

	bare := Reference("customer-alias")
	assert.Equal(t, "customer-alias", bare.TransactionID())
	assert.False(t, bare.IsTransaction())
}
