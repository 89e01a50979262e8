package ledger

import (
	"strings"

	"finscrape/internal/htmlutil"

	"github.com/shopspring/decimal"
)

const (
	ShekelSymbol = "₪"
	DollarSymbol = "$"
	EuroSymbol   = "€"

	ShekelCurrency = "ILS"
	DollarCurrency = "USD"
	EuroCurrency   = "EUR"
)

type currencySymbol struct {
	symbol string
	code   string
}

// checked in this order
var currencySymbols = []currencySymbol{
	{symbol: ShekelSymbol, code: ShekelCurrency},
	{symbol: DollarSymbol, code: DollarCurrency},
	{symbol: EuroSymbol, code: EuroCurrency},
}

// ParseAmount parses a rendered amount such as "₪ 1,234.50" or "GBP 12.00".
// Portals render debits as positive magnitudes so the result is negated.
// When the numeric part does not parse, the returned amount is invalid but the
// currency is still filled in.
func ParseAmount(text string) AmountTuple {
	cleaned := strings.ReplaceAll(htmlutil.CleanText(text), ",", "")

	for _, c := range currencySymbols {
		if !strings.Contains(cleaned, c.symbol) {
			continue
		}
		return AmountTuple{
			Amount:   negate(strings.ReplaceAll(cleaned, c.symbol, "")),
			Currency: c.code,
		}
	}

	code, number, _ := strings.Cut(cleaned, " ")
	return AmountTuple{
		Amount:   negate(number),
		Currency: code,
	}
}

func negate(number string) decimal.NullDecimal {
	number = strings.ReplaceAll(number, " ", "")
	value, err := decimal.NewFromString(number)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value.Neg())
}

// FormatAmount renders an amount the way the portal does, as a positive
// magnitude followed by the currency symbol (or preceded by the code for
// currencies without a known symbol).
func FormatAmount(a AmountTuple) string {
	if !a.Amount.Valid {
		return a.Currency + " NaN"
	}
	magnitude := a.Amount.Decimal.Neg().StringFixed(2)
	for _, c := range currencySymbols {
		if c.code == a.Currency {
			return magnitude + " " + c.symbol
		}
	}
	return a.Currency + " " + magnitude
}
