package ledger

import (
	"testing"

	random "github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

func TestDetectInstallments(t *testing.T) {
	cases := []struct {
		memo     string
		expected *Installments
	}{
		{memo: "תשלום 2 מתוך 5", expected: &Installments{Number: 2, Total: 5}},
		{memo: "עסקה בתשלומים: תשלום 10 מתוך 12", expected: &Installments{Number: 10, Total: 12}},
		{memo: "Payment 3 of 6", expected: &Installments{Number: 3, Total: 6}},
		{memo: "", expected: nil},
		{memo: "2 מתוך 5", expected: nil},
		{memo: "תשלום 2", expected: nil},
		{memo: "הוראת קבע", expected: nil},
		{memo: "תשלום 0 מתוך 3", expected: nil},
		{memo: "תשלום 7 מתוך 3", expected: nil},
		{memo: "payment 3 of 3", expected: &Installments{Number: 3, Total: 3}},
	}

	for _, test := range cases {
		require.Equal(t, test.expected, DetectInstallments(test.memo), test.memo)
	}
}

func TestDetectInstallmentsRandomMemos(t *testing.T) {
	for i := 0; i < 50; i++ {
		memo, err := random.String(24)
		require.NoError(t, err)
		require.Nil(t, DetectInstallments(memo), memo)
	}
}
