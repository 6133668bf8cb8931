package playback

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"nmeaflow/internal/sched"
)

const DefaultBaseInterval = time.Second

// Speed bounds accepted by a session.
const (
	MinSpeed = 0.001
	MaxSpeed = 10000
)

type Options struct {
	// Speed scales time: 2 plays twice as fast. Zero means 1.
	Speed float64 `json:"speed"`
	// Loop restarts from the first line after the last one.
	Loop bool `json:"loop"`
	// BaseInterval spaces lines without recorded offsets. Zero means
	// DefaultBaseInterval.
	BaseInterval time.Duration `json:"baseInterval"`
}

func (o Options) withDefaults() (Options, error) {
	if o.Speed == 0 {
		o.Speed = 1
	}
	if !(o.Speed >= MinSpeed && o.Speed <= MaxSpeed) {
		return o, fmt.Errorf("playback speed must be within [%v, %v] (got %v)", MinSpeed, MaxSpeed, o.Speed)
	}
	if o.BaseInterval == 0 {
		o.BaseInterval = DefaultBaseInterval
	}
	if o.BaseInterval < 0 {
		return o, fmt.Errorf("playback base interval must be >= 0 (got %s)", o.BaseInterval)
	}
	return o, nil
}

// Status is a point-in-time view of a session.
type Status struct {
	ID       string  `json:"id"`
	Path     string  `json:"path"`
	Speed    float64 `json:"speed"`
	Loop     bool    `json:"loop"`
	Cursor   int     `json:"cursor"`
	Total    int     `json:"total"`
	Emitted  uint64  `json:"emitted"`
	Active   bool    `json:"active"`
	Finished bool    `json:"finished"`
}

// Session emits lines on a schedule. Emissions never overlap. After Stop
// returns no further emission starts and none is in flight.
type Session struct {
	id    string
	path  string
	lines []Line
	opts  Options
	queue *sched.Queue
	emit  func(Line)

	mu       sync.Mutex
	cursor   int
	emitted  uint64
	started  bool
	active   bool
	finished bool

	done     chan struct{}
	doneOnce sync.Once
}

func NewSession(path string, lines []Line, opts Options, clk clock.Clock, emit func(Line)) (*Session, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if emit == nil {
		return nil, errors.New("playback emit func is nil")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:    uuid.NewString(),
		path:  path,
		lines: lines,
		opts:  opts,
		queue: sched.New(clk),
		emit:  emit,
		done:  make(chan struct{}),
	}, nil
}

func (s *Session) ID() string { return s.id }

// Start emits the first line immediately and schedules the rest.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("playback session already started")
	}
	s.started = true
	s.active = true
	s.mu.Unlock()

	if _, err := s.queue.After(0, s.step); err != nil {
		return err
	}
	return nil
}

func (s *Session) step() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	line := s.lines[s.cursor]
	s.mu.Unlock()

	s.emit(line)

	s.mu.Lock()
	s.emitted++
	cur := s.cursor
	next := cur + 1
	var delay time.Duration
	if next >= len(s.lines) {
		if !s.opts.Loop {
			s.cursor = len(s.lines)
			s.finished = true
			s.active = false
			s.mu.Unlock()
			s.closeDone()
			return
		}
		next = 0
		delay = s.scale(s.opts.BaseInterval)
	} else {
		delay = s.scale(s.gap(cur, next))
	}
	s.cursor = next
	active := s.active
	s.mu.Unlock()

	if active {
		// ErrClosed means Stop won the race.
		_, _ = s.queue.After(delay, s.step)
	}
}

func (s *Session) gap(cur, next int) time.Duration {
	a, b := s.lines[cur], s.lines[next]
	if a.HasAt && b.HasAt && b.At >= a.At {
		return b.At - a.At
	}
	return s.opts.BaseInterval
}

func (s *Session) scale(d time.Duration) time.Duration {
	v := float64(d) / s.opts.Speed
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(v)
}

// Stop cancels pending emissions and waits for one in flight. It is
// idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.queue.Close()
	s.closeDone()
}

// Done is closed when the session finishes or is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:       s.id,
		Path:     s.path,
		Speed:    s.opts.Speed,
		Loop:     s.opts.Loop,
		Cursor:   s.cursor,
		Total:    len(s.lines),
		Emitted:  s.emitted,
		Active:   s.active,
		Finished: s.finished,
	}
}
