package ingest

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"nmeaflow/internal/logging"
	"nmeaflow/internal/mapper"
	"nmeaflow/internal/metrics"
	"nmeaflow/internal/nmea"
	"nmeaflow/internal/store"
)

// RawSentence is one received line.
type RawSentence struct {
	Line       string
	ReceivedAt time.Time
	Source     string
}

// Outcome summarizes what Process did with a line.
type Outcome struct {
	Validation nmea.Result
	Sentence   nmea.Sentence
	ParseErr   error
	Updates    int
	// Defect is set when the mapper failed on a parsed sentence.
	Defect error
}

// Pipeline runs validate, parse, map and apply for each line. It is not safe
// for concurrent use; each source feeds it from a single goroutine.
type Pipeline struct {
	Store   *store.Store
	Log     logging.Logger
	Metrics *metrics.Metrics
	// Strict re-panics on mapper defects instead of recovering.
	Strict bool
}

func NewPipeline(s *store.Store, log logging.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{Store: s, Log: logging.OrNop(log), Metrics: m}
}

// Process handles one line. Every line produces exactly one audit entry.
func (p *Pipeline) Process(raw RawSentence) Outcome {
	res := nmea.Validate(raw.Line)
	out := Outcome{Validation: res}

	if !res.Valid() {
		p.Metrics.Line(res.Status.String())
		p.Store.AppendAudit(store.AuditEntry{
			Line:       raw.Line,
			Invalid:    true,
			Reason:     res.Reason,
			Source:     raw.Source,
			ReceivedAt: raw.ReceivedAt,
		})
		p.Log.Warn("invalid sentence", "status", res.Status.String(), "reason", res.Reason, "source", raw.Source, "line", res.Line)
		return out
	}

	p.Metrics.Line(metrics.ResultValid)
	p.Store.AppendAudit(store.AuditEntry{
		Line:       res.Line,
		Source:     raw.Source,
		ReceivedAt: raw.ReceivedAt,
	})

	s, err := nmea.Parse(res.Payload)
	if err != nil {
		out.ParseErr = err
		var pe *nmea.ParseError
		kind := "unknown"
		if errors.As(err, &pe) {
			kind = pe.Kind.String()
		}
		p.Metrics.ParseError(kind, res.Payload.Type)
		if errors.Is(err, nmea.ErrUnsupportedType) {
			p.Log.Debug("unsupported sentence", "type", res.Payload.Type, "source", raw.Source)
		} else {
			p.Log.Warn("sentence field mismatch", "error", err, "source", raw.Source, "line", res.Line)
		}
		return out
	}
	out.Sentence = s
	p.Metrics.Sentence(s.Type())

	updates, err := p.mapSentence(s)
	if err != nil {
		out.Defect = err
		p.Metrics.Defect()
		p.Log.Error(err, "mapper defect", "type", s.Type(), "line", res.Line)
		return out
	}
	p.Store.ApplyUpdates(updates)
	out.Updates = len(updates)
	p.Metrics.Updates(len(updates))
	if !raw.ReceivedAt.IsZero() {
		p.Metrics.ProcessSeconds(time.Since(raw.ReceivedAt).Seconds())
	}
	return out
}

// Reject audits a line that never reached validation, e.g. an oversized one.
func (p *Pipeline) Reject(raw RawSentence, reason string) {
	p.Metrics.Line(metrics.ResultMalformed)
	p.Store.AppendAudit(store.AuditEntry{
		Line:       truncate(raw.Line, 128),
		Invalid:    true,
		Reason:     reason,
		Source:     raw.Source,
		ReceivedAt: raw.ReceivedAt,
	})
	p.Log.Warn("rejected line", "reason", reason, "source", raw.Source, "bytes", len(raw.Line))
}

func (p *Pipeline) mapSentence(s nmea.Sentence) (updates []store.FieldUpdate, err error) {
	if p.Strict {
		return mapper.Map(s), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mapper panic on %s: %v\n%s", s.Type(), r, debug.Stack())
		}
	}()
	return mapper.MapChecked(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
