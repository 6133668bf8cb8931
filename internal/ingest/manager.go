package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"nmeaflow/internal/logging"
	"nmeaflow/internal/metrics"
	"nmeaflow/internal/playback"
	"nmeaflow/internal/store"
)

// Connection states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateError        = "error"
)

// AllStates lists every connection state.
var AllStates = []string{StateDisconnected, StateConnecting, StateConnected, StateError}

const (
	evConnect     = "connect"
	evEstablished = "established"
	evFail        = "fail"
	evDrop        = "drop"
	evRetry       = "retry"
	evDisconnect  = "disconnect"
)

const DefaultMaxLineBytes = 4096

// Status is a point-in-time view of the connection.
type Status struct {
	State        string    `json:"state"`
	Source       string    `json:"source,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
	LastReceived time.Time `json:"lastReceived,omitempty"`
	Lines        uint64    `json:"lines"`
	Reconnects   uint64    `json:"reconnects"`
}

// LineRecorder receives every line read from a live source.
type LineRecorder interface {
	Record(line string, now time.Time) error
}

type Options struct {
	Store   *store.Store
	Log     logging.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock

	// ReconnectInitial and ReconnectMax bound the retry backoff. Defaults
	// are 250ms and 10s.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	MaxLineBytes     int

	Recorder LineRecorder
}

// Manager owns the single active input, either a live Source or a playback
// session, and feeds its lines through a Pipeline.
type Manager struct {
	opts     Options
	log      logging.Logger
	clock    clock.Clock
	pipeline *Pipeline
	fsm      *fsm.FSM

	ctl sync.Mutex // serializes Connect, Disconnect and playback control

	mu        sync.Mutex
	status    Status
	cancel    context.CancelFunc
	done      chan struct{}
	session   *playback.Session
	lastPlay  playback.Status
	listeners []func(Status)
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("ingest manager requires a store")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 250 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 10 * time.Second
	}
	if opts.ReconnectMax < opts.ReconnectInitial {
		opts.ReconnectMax = opts.ReconnectInitial
	}
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultMaxLineBytes
	}
	log := logging.OrNop(opts.Log).WithName("ingest")

	m := &Manager{
		opts:     opts,
		log:      log,
		clock:    opts.Clock,
		pipeline: NewPipeline(opts.Store, log.WithName("pipeline"), opts.Metrics),
		status:   Status{State: StateDisconnected},
	}
	m.fsm = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: evConnect, Src: []string{StateDisconnected, StateError}, Dst: StateConnecting},
			{Name: evEstablished, Src: []string{StateConnecting}, Dst: StateConnected},
			{Name: evFail, Src: []string{StateConnecting, StateConnected}, Dst: StateError},
			{Name: evDrop, Src: []string{StateConnected}, Dst: StateDisconnected},
			{Name: evRetry, Src: []string{StateError, StateDisconnected}, Dst: StateConnecting},
			{Name: evDisconnect, Src: []string{StateDisconnected, StateConnecting, StateConnected, StateError}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) { m.enterState(e.Event, e.Src, e.Dst) },
		},
	)
	opts.Metrics.State(StateDisconnected, AllStates)
	return m, nil
}

// Pipeline exposes the line pipeline, mainly for tests.
func (m *Manager) Pipeline() *Pipeline { return m.pipeline }

// OnState registers fn to observe every state transition.
func (m *Manager) OnState(fn func(Status)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// PlaybackStatus reports the current or most recent playback session.
func (m *Manager) PlaybackStatus() (playback.Status, bool) {
	m.mu.Lock()
	sess := m.session
	last := m.lastPlay
	m.mu.Unlock()
	if sess != nil {
		return sess.Status(), true
	}
	return last, last.ID != ""
}

// transition fires ev. err, when set, becomes the status' last error.
func (m *Manager) transition(ev string, err error) {
	if err != nil {
		m.mu.Lock()
		m.status.LastError = err.Error()
		m.mu.Unlock()
	}
	if ferr := m.fsm.Event(context.Background(), ev); ferr != nil {
		var nt fsm.NoTransitionError
		if errors.As(ferr, &nt) {
			return
		}
		m.log.Debug("ignored connection event", "event", ev, "state", m.fsm.Current(), "error", ferr)
	}
}

func (m *Manager) enterState(ev, from, to string) {
	m.mu.Lock()
	m.status.State = to
	if to == StateConnected || ev == evDisconnect {
		m.status.LastError = ""
	}
	st := m.status
	fns := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	m.opts.Metrics.State(to, AllStates)
	if to == StateError {
		m.log.Warn("connection state", "from", from, "to", to, "event", ev, "source", st.Source, "lastError", st.LastError)
	} else {
		m.log.Info("connection state", "from", from, "to", to, "event", ev, "source", st.Source)
	}
	for _, fn := range fns {
		fn(st)
	}
}

// Connect stops whatever input is active and starts reading src. It returns
// once the reader goroutine is running; connection progress is reported
// through Status and OnState.
func (m *Manager) Connect(ctx context.Context, src Source) error {
	if src == nil {
		return ErrNoSource
	}
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.status.Source = src.Name()
	m.status.Reconnects = 0
	m.mu.Unlock()

	m.transition(evConnect, nil)
	go m.run(runCtx, src, done)
	return nil
}

// Disconnect stops the active input and waits for it to exit. The store is
// left untouched.
func (m *Manager) Disconnect() {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.stopLocked()
}

// stopLocked stops the live reader and any playback session. Callers hold ctl.
func (m *Manager) stopLocked() {
	m.mu.Lock()
	cancel, done, sess := m.cancel, m.done, m.session
	m.cancel, m.done, m.session = nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if sess != nil {
		sess.Stop()
		m.mu.Lock()
		m.lastPlay = sess.Status()
		m.mu.Unlock()
	}
	m.transition(evDisconnect, nil)
}

func (m *Manager) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.ReconnectInitial
	b.MaxInterval = m.opts.ReconnectMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Clock = m.clock
	b.Reset()
	return b
}

func (m *Manager) run(ctx context.Context, src Source, done chan struct{}) {
	defer close(done)
	bo := m.newBackOff()
	log := m.log.WithValues("source", src.Name())

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			m.mu.Lock()
			m.status.Reconnects++
			m.mu.Unlock()
			m.opts.Metrics.Reconnect()
			m.transition(evRetry, nil)
		}

		rc, err := src.Open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.transition(evFail, err)
			wait := bo.NextBackOff()
			log.Debug("retrying", "in", wait)
			if !m.sleep(ctx, wait) {
				return
			}
			continue
		}

		m.transition(evEstablished, nil)
		bo.Reset()

		err = m.readLines(ctx, src.Name(), rc)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			m.transition(evDrop, nil)
		} else {
			m.transition(evFail, err)
		}
		if !m.sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

// readLines feeds rc through the pipeline until it ends. A clean EOF returns
// nil.
func (m *Manager) readLines(ctx context.Context, name string, rc io.ReadCloser) error {
	stop := context.AfterFunc(ctx, func() { _ = rc.Close() })
	defer func() {
		stop()
		_ = rc.Close()
	}()

	lr := newLineReader(rc, m.opts.MaxLineBytes)
	for {
		line, tooLong, err := lr.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		now := m.clock.Now().UTC()
		if tooLong {
			m.countLine(now)
			m.pipeline.Reject(RawSentence{Line: string(line), ReceivedAt: now, Source: name}, "line-too-long")
			continue
		}
		text := strings.TrimSpace(string(line))
		if text == "" {
			continue
		}
		if rec := m.opts.Recorder; rec != nil {
			if err := rec.Record(text, now); err != nil {
				m.log.Error(err, "record line")
			}
		}
		m.handleLine(RawSentence{Line: text, ReceivedAt: now, Source: name})
	}
}

func (m *Manager) handleLine(raw RawSentence) {
	m.countLine(raw.ReceivedAt)
	m.pipeline.Process(raw)
}

func (m *Manager) countLine(at time.Time) {
	m.mu.Lock()
	m.status.Lines++
	m.status.LastReceived = at
	m.mu.Unlock()
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := m.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C():
		return true
	}
}

// StartPlayback stops the active input and replays the capture at path
// through the same pipeline as live input.
func (m *Manager) StartPlayback(path string, opts playback.Options) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.stopLocked()
	name := "playback:" + path
	m.mu.Lock()
	m.status.Source = name
	m.status.Reconnects = 0
	m.mu.Unlock()
	m.transition(evConnect, nil)

	lines, err := playback.Load(path)
	if err != nil {
		m.transition(evFail, err)
		return err
	}
	sess, err := playback.NewSession(path, lines, opts, m.clock, func(l playback.Line) {
		m.opts.Metrics.PlaybackLine()
		m.handleLine(RawSentence{Line: l.Sentence, ReceivedAt: m.clock.Now().UTC(), Source: name})
	})
	if err != nil {
		m.transition(evFail, err)
		return err
	}
	m.transition(evEstablished, nil)

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()
	if err := sess.Start(); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	m.log.Info("playback started", "path", path, "session", sess.ID(), "lines", len(lines))
	return nil
}

// StopPlayback stops the playback session, if any. No store write from the
// session happens after it returns.
func (m *Manager) StopPlayback() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return
	}
	m.stopLocked()
}

// Close stops all input.
func (m *Manager) Close() {
	m.Disconnect()
}
