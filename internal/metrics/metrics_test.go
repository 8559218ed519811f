package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Saves.WithLabelValues(OutcomeOK).Inc()
	m.Conflicts.Inc()

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP quill_conflicts_total Total version conflicts detected on save
# TYPE quill_conflicts_total counter
quill_conflicts_total 1
`), "quill_conflicts_total")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Saves.WithLabelValues(OutcomeOK)))
}

func TestNew_NilRegistererIsUsable(t *testing.T) {
	m := New(nil)
	m.DraftsWritten.WithLabelValues("ok").Inc()
	m.SearchResults.Observe(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DraftsWritten.WithLabelValues("ok")))
}
