package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("ledger:integrity").End(nil))
	err := errors.New("boom")
	assert.Same(t, err, m.Track("ledger:integrity").End(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:integrity", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:integrity")))
}

func TestAddFindingsIgnoresEmpty(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFindings("unbalanced_entry", 0)
	m.AddFindings("unbalanced_entry", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("unbalanced_entry")))

	var nilMetrics *Metrics
	nilMetrics.AddFindings("unbalanced_entry", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
