package ledger

import (
	"errors"
	"fmt"
	"time"

	"finscrape/internal/htmlutil"
)

const (
	// DD/MM/YY, day and month may be unpadded
	ShortDateLayout = "2/1/06"
	// DD/MM/YYYY
	LongDateLayout = "2/1/2006"
)

var ErrInvalidProcessedDate = errors.New("invalid processed date")

// ParseProcessedDate picks the layout by the length of the rendered date, the
// portal is inconsistent about it between billing cycles.
func ParseProcessedDate(text string, loc *time.Location) (time.Time, error) {
	var layout string
	switch len(text) {
	case 8:
		layout = ShortDateLayout
	case 9, 10:
		layout = LongDateLayout
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidProcessedDate, text)
	}
	parsed, err := time.ParseInLocation(layout, text, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrInvalidProcessedDate, text, err)
	}
	return parsed, nil
}

// ParseTransactionDate parses a purchase date. It returns the zero time when the
// text cannot be parsed so the row can still be surfaced.
func ParseTransactionDate(text string, loc *time.Location) time.Time {
	parsed, err := time.ParseInLocation(ShortDateLayout, text, loc)
	if err == nil {
		return parsed
	}
	parsed, err = time.ParseInLocation(LongDateLayout, text, loc)
	if err == nil {
		return parsed
	}
	return time.Time{}
}

// AddMonths adds n calendar months, clamping the day to the end of the target
// month instead of overflowing into the next one.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Normalize converts raw rows into transactions. Rows without their own processed
// date column inherit settlementDate, rows with one must fill it. A processed date of unexpected width fails the whole
// batch, unparsable amounts and purchase dates are kept in the output.
func Normalize(rows []RawRow, settlementDate string, loc *time.Location) ([]Transaction, error) {
	txns := make([]Transaction, 0, len(rows))
	for i, row := range rows {
		txn, err := normalizeRow(row, settlementDate, loc)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func normalizeRow(row RawRow, settlementDate string, loc *time.Location) (Transaction, error) {
	processedText := htmlutil.CleanText(row.ProcessedDate)
	if !row.HasProcessedDate && processedText == "" {
		processedText = settlementDate
	}
	processedDate, err := ParseProcessedDate(processedText, loc)
	if err != nil {
		return Transaction{}, err
	}

	original := ParseAmount(row.OriginalAmount)
	charged := ParseAmount(row.ChargedAmount)
	memo := htmlutil.CleanText(row.Memo)
	installments := DetectInstallments(memo)

	date := ParseTransactionDate(htmlutil.CleanText(row.Date), loc)
	txnType := TypeNormal
	if installments != nil {
		txnType = TypeInstallments
		if !date.IsZero() {
			date = AddMonths(date, installments.Number-1)
		}
	}

	return Transaction{
		Type:             txnType,
		Status:           StatusCompleted,
		Date:             date,
		ProcessedDate:    processedDate,
		OriginalAmount:   original.Amount,
		OriginalCurrency: original.Currency,
		ChargedAmount:    charged.Amount,
		ChargedCurrency:  charged.Currency,
		Description:      htmlutil.CleanText(row.Description),
		Memo:             memo,
		Installments:     installments,
	}, nil
}
