package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Line(ResultValid)
	m.Line(ResultValid)
	m.Line(ResultChecksumFail)
	m.ParseError("unsupported-type", "GSV")
	m.Updates(3)
	m.Updates(0)
	m.Defect()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lines.WithLabelValues(ResultValid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lines.WithLabelValues(ResultChecksumFail)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parseErrors.WithLabelValues("unsupported-type", "GSV")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.updates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.defects))

	n, err := testutil.GatherAndCount(reg, "nmeaflow_lines_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_StateIsOneHot(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	all := []string{"disconnected", "connecting", "connected", "error"}

	m.State("connecting", all)
	m.State("connected", all)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("disconnected")))
}

func TestMetrics_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Line(ResultValid)
		m.ParseError("x", "y")
		m.Sentence("GGA")
		m.Updates(1)
		m.Defect()
		m.State("connected", []string{"connected"})
		m.Reconnect()
		m.PlaybackLine()
		m.ProcessSeconds(0.1)
	})
}
