package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		input    string
		amount   string
		currency string
	}{
		{input: "₪ 1,234.50", amount: "-1234.5", currency: ShekelCurrency},
		{input: "1,234,567.89 ₪", amount: "-1234567.89", currency: ShekelCurrency},
		{input: "$12.00", amount: "-12", currency: DollarCurrency},
		{input: "€ 5", amount: "-5", currency: EuroCurrency},
		{input: "GBP 12.30", amount: "-12.3", currency: "GBP"},
		{input: "-50.00 ₪", amount: "50", currency: ShekelCurrency},
		{input: "\u200f₪ 99.90", amount: "-99.9", currency: ShekelCurrency},
	}

	for _, test := range cases {
		t.Run(test.input, func(t *testing.T) {
			parsed := ParseAmount(test.input)
			require.True(t, parsed.Amount.Valid)
			require.True(
				t,
				decimal.RequireFromString(test.amount).Equal(parsed.Amount.Decimal),
				"expected %s, got %s", test.amount, parsed.Amount.Decimal,
			)
			require.Equal(t, test.currency, parsed.Currency)
		})
	}
}

func TestParseAmountUnparsable(t *testing.T) {
	cases := []struct {
		input    string
		currency string
	}{
		{input: "₪ --", currency: ShekelCurrency},
		{input: "GBP", currency: "GBP"},
		{input: "", currency: ""},
	}

	for _, test := range cases {
		parsed := ParseAmount(test.input)
		require.False(t, parsed.Amount.Valid, test.input)
		require.Equal(t, test.currency, parsed.Currency)
	}
}

func TestParseAmountRoundTrip(t *testing.T) {
	rndm := rand.New(rand.NewSource(17))
	currencies := []string{ShekelCurrency, DollarCurrency, EuroCurrency, "GBP"}

	for i := 0; i < 200; i++ {
		cents := rndm.Int63n(100_000_000)
		magnitude := decimal.New(cents, -2)
		currency := currencies[rndm.Intn(len(currencies))]

		parsed := ParseAmount(FormatAmount(AmountTuple{
			Amount:   decimal.NewNullDecimal(magnitude.Neg()),
			Currency: currency,
		}))

		require.True(t, parsed.Amount.Valid)
		require.True(t, parsed.Amount.Decimal.Equal(magnitude.Neg()), "amount %s", magnitude)
		require.True(t, parsed.Amount.Decimal.LessThanOrEqual(decimal.Zero))
		require.Equal(t, currency, parsed.Currency)
	}
}
