// Package metrics holds the Prometheus collectors for the ingestion pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nmeaflow"

// Line results.
const (
	ResultValid        = "valid"
	ResultChecksumFail = "checksum-fail"
	ResultMalformed    = "malformed"
)

type Metrics struct {
	lines        *prometheus.CounterVec // by result
	parseErrors  *prometheus.CounterVec // by kind and sentence type
	sentences    *prometheus.CounterVec // by sentence type
	updates      prometheus.Counter
	defects      prometheus.Counter
	state        *prometheus.GaugeVec // one-hot by state
	reconnects   prometheus.Counter
	playback     prometheus.Counter
	processDelay prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Lines received, by validation result.",
		}, []string{"result"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Valid lines that could not be parsed, by kind and sentence type.",
		}, []string{"kind", "type"}),
		sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_total",
			Help:      "Successfully parsed sentences, by sentence type.",
		}, []string{"type"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_updates_total",
			Help:      "Field updates applied to the store.",
		}),
		defects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mapper_defects_total",
			Help:      "Sentences the mapper failed on.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connection attempts after a failure or drop.",
		}),
		playback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "lines_total",
			Help:      "Lines emitted by playback.",
		}),
		processDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_seconds",
			Help:      "Time from line receipt to store update.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.lines, m.parseErrors, m.sentences, m.updates, m.defects,
		m.state, m.reconnects, m.playback, m.processDelay,
	}
}

func (m *Metrics) Line(result string) {
	if m == nil {
		return
	}
	m.lines.WithLabelValues(result).Inc()
}

func (m *Metrics) ParseError(kind, sentenceType string) {
	if m == nil {
		return
	}
	m.parseErrors.WithLabelValues(kind, sentenceType).Inc()
}

func (m *Metrics) Sentence(sentenceType string) {
	if m == nil {
		return
	}
	m.sentences.WithLabelValues(sentenceType).Inc()
}

func (m *Metrics) Updates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.updates.Add(float64(n))
}

func (m *Metrics) Defect() {
	if m == nil {
		return
	}
	m.defects.Inc()
}

// State marks current as the active connection state among all.
func (m *Metrics) State(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) PlaybackLine() {
	if m == nil {
		return
	}
	m.playback.Inc()
}

func (m *Metrics) ProcessSeconds(s float64) {
	if m == nil {
		return
	}
	m.processDelay.Observe(s)
}
