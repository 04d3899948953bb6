package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePass(time.Second, nil)
		m.IncEscalated("auto")
		m.IncFailure()
		m.IncNotification("resolution", "sent")
	})
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObservePass(time.Second, nil)
	m.ObservePass(time.Second, errors.New("db down"))
	m.IncEscalated("manual")
	m.IncFailure()
	m.IncFailure()
	m.IncNotification("resolution", "failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EscalatedTotal.WithLabelValues("manual")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("resolution", "failed")))

	count, err := testutil.GatherAndCount(reg, "grievance_escalation_pass_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewMetricsWithoutRegistry(t *testing.T) {
	m := NewMetrics(nil)
	m.IncEscalated("auto")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EscalatedTotal.WithLabelValues("auto")))
}
