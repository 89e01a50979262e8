package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("harvest", NewScopedAPI("visacal", rec))

	scoped.ReportBroken("billing-cycle", "missing label")
	scoped.ReportCount("transactions", 3)

	reports := rec.Reports()
	require.Len(t, reports, 2)
	require.Equal(t, "visacal: harvest: billing-cycle", reports[0].ID)
	require.Equal(t, []any{"missing label"}, reports[0].Params)
	require.Equal(t, int64(3), reports[1].Count)
	require.Len(t, rec.Find("count", "transactions"), 1)
}

func TestMultiAPI(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	multi := Multi(first, second)

	multi.ReportWarning("login.classify", "predicate failed")
	multi.ReportDebug("navigate")

	for _, rec := range []*Recorder{first, second} {
		require.Len(t, rec.Find("warning", "login.classify"), 1)
		require.Len(t, rec.Find("debug", "navigate"), 1)
	}
}
