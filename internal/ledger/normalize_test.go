package ledger

import (
	"testing"
	"time"

	"finscrape/internal/components/chrono"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, chrono.Jerusalem())
}

func TestParseProcessedDate(t *testing.T) {
	loc := chrono.Jerusalem()

	cases := []struct {
		input    string
		expected time.Time
	}{
		{input: "10/01/23", expected: date(2023, time.January, 10)},
		{input: "10/01/2023", expected: date(2023, time.January, 10)},
		{input: "2/11/2023", expected: date(2023, time.November, 2)},
	}
	for _, test := range cases {
		parsed, err := ParseProcessedDate(test.input, loc)
		require.NoError(t, err, test.input)
		require.True(t, test.expected.Equal(parsed), "%s: got %v", test.input, parsed)
	}

	for _, invalid := range []string{"1/01/23", "01/2023", "", "10/01/2023 "} {
		_, err := ParseProcessedDate(invalid, loc)
		require.ErrorIs(t, err, ErrInvalidProcessedDate, invalid)
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		start    time.Time
		months   int
		expected time.Time
	}{
		{start: date(2023, time.January, 10), months: 2, expected: date(2023, time.March, 10)},
		{start: date(2024, time.January, 31), months: 1, expected: date(2024, time.February, 29)},
		{start: date(2023, time.November, 30), months: 3, expected: date(2024, time.February, 29)},
		{start: date(2023, time.May, 15), months: 0, expected: date(2023, time.May, 15)},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, AddMonths(test.start, test.months))
	}
}

func TestNormalize(t *testing.T) {
	loc := chrono.Jerusalem()

	rows := []RawRow{
		{
			ProcessedDate:  "02/02/2023",
			Date:           "15/01/23",
			Description:    " סופר  פארם ",
			OriginalAmount: "₪ 1,200.00",
			ChargedAmount:  "₪ 1,200.00",
		},
		{
			Date:           "10/01/23",
			Description:    "IKEA",
			OriginalAmount: "₪ 600.00",
			ChargedAmount:  "₪ 100.00",
			Memo:           "תשלום 3 מתוך 6",
		},
		{
			Date:           "20/01/23",
			Description:    "AMAZON",
			OriginalAmount: "USD 12.50",
			ChargedAmount:  "₪ 45.10",
		},
	}

	txns, err := Normalize(rows, "02/03/23", loc)
	require.NoError(t, err)

	expected := []Transaction{
		{
			Type:             TypeNormal,
			Status:           StatusCompleted,
			Date:             date(2023, time.January, 15),
			ProcessedDate:    date(2023, time.February, 2),
			OriginalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("-1200")),
			OriginalCurrency: ShekelCurrency,
			ChargedAmount:    decimal.NewNullDecimal(decimal.RequireFromString("-1200")),
			ChargedCurrency:  ShekelCurrency,
			Description:      "סופר פארם",
		},
		{
			Type:             TypeInstallments,
			Status:           StatusCompleted,
			Date:             date(2023, time.March, 10),
			ProcessedDate:    date(2023, time.March, 2),
			OriginalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("-600")),
			OriginalCurrency: ShekelCurrency,
			ChargedAmount:    decimal.NewNullDecimal(decimal.RequireFromString("-100")),
			ChargedCurrency:  ShekelCurrency,
			Description:      "IKEA",
			Memo:             "תשלום 3 מתוך 6",
			Installments:     &Installments{Number: 3, Total: 6},
		},
		{
			Type:             TypeNormal,
			Status:           StatusCompleted,
			Date:             date(2023, time.January, 20),
			ProcessedDate:    date(2023, time.March, 2),
			OriginalAmount:   decimal.NewNullDecimal(decimal.RequireFromString("-12.5")),
			OriginalCurrency: "USD",
			ChargedAmount:    decimal.NewNullDecimal(decimal.RequireFromString("-45.1")),
			ChargedCurrency:  ShekelCurrency,
			Description:      "AMAZON",
		},
	}

	diff := cmp.Diff(expected, txns, cmp.Comparer(func(a, b decimal.Decimal) bool {
		return a.Equal(b)
	}))
	require.Empty(t, diff)
}

func TestNormalizeKeepsAnomalies(t *testing.T) {
	txns, err := Normalize([]RawRow{{
		ProcessedDate:  "02/02/23",
		Date:           "not a date",
		OriginalAmount: "₪ ---",
		ChargedAmount:  "₪ 10.00",
	}}, "", chrono.Jerusalem())
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.False(t, txns[0].OriginalAmount.Valid)
	require.True(t, txns[0].ChargedAmount.Valid)
	require.True(t, txns[0].Date.IsZero())
	require.True(t, txns[0].Anomalous())
}

func TestNormalizeInvalidProcessedDate(t *testing.T) {
	_, err := Normalize([]RawRow{
		{ProcessedDate: "02/02/23", Date: "01/01/23", OriginalAmount: "₪ 1", ChargedAmount: "₪ 1"},
		{Date: "01/01/23", OriginalAmount: "₪ 1", ChargedAmount: "₪ 1"},
	}, "1/02/23", chrono.Jerusalem())
	require.ErrorIs(t, err, ErrInvalidProcessedDate)
}

func TestNormalizeBlankOwnProcessedDate(t *testing.T) {
	rows := []RawRow{{
		HasProcessedDate: true,
		ProcessedDate:    " ",
		Date:             "01/01/23",
		OriginalAmount:   "₪ 1",
		ChargedAmount:    "₪ 1",
	}}
	_, err := Normalize(rows, "02/02/23", chrono.Jerusalem())
	require.ErrorIs(t, err, ErrInvalidProcessedDate)

	rows[0].HasProcessedDate = false
	txns, err := Normalize(rows, "02/02/23", chrono.Jerusalem())
	require.NoError(t, err)
	require.True(t, txns[0].ProcessedDate.Equal(date(2023, time.February, 2)))
}
