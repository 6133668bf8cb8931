package store

import (
	"sync"
	"sync/atomic"

	"k8s.io/utils/clock"
)

const DefaultAuditSize = 500

type Options struct {
	// AuditSize bounds the audit log. Zero means DefaultAuditSize; negative
	// disables the log.
	AuditSize int
	Clock     clock.PassiveClock
}

// Store holds the current Record and the audit log. Reads never block:
// Snapshot loads an immutable Record. Writes are serialized and publish a
// fresh copy, so a batch is observed either entirely or not at all.
type Store struct {
	clock clock.PassiveClock

	// notifyMu spans publish and dispatch so listeners see versions in
	// order. mu is released before dispatch so listeners may read.
	notifyMu sync.Mutex
	mu       sync.Mutex // serializes writers
	current  atomic.Pointer[Record]
	audit    *auditRing

	subMu     sync.Mutex
	nextSub   uint64
	listeners map[uint64]func(Record)
}

func New(opts Options) *Store {
	size := opts.AuditSize
	if size == 0 {
		size = DefaultAuditSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	s := &Store{
		clock:     opts.Clock,
		audit:     newAuditRing(size),
		listeners: make(map[uint64]func(Record)),
	}
	s.current.Store(&Record{})
	return s
}

// Snapshot returns the current record.
func (s *Store) Snapshot() Record {
	return *s.current.Load()
}

// ApplyUpdates merges a batch into the record. Later updates to the same
// field within one batch win. Empty batches are ignored.
func (s *Store) ApplyUpdates(updates []FieldUpdate) {
	if len(updates) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.current.Load()
	now := s.clock.Now().UTC()
	fields := make(map[Field]Entry, len(prev.fields)+len(updates))
	for k, v := range prev.fields {
		fields[k] = v
	}
	for _, u := range updates {
		if u.Value == nil {
			continue
		}
		fields[u.Field] = Entry{Value: u.Value, UpdatedAt: now}
	}
	next := &Record{fields: fields, version: prev.version + 1, updatedAt: now}
	s.current.Store(next)
	s.mu.Unlock()

	s.notify(*next)
}

// Reset clears every field and the audit log. Listeners are notified even
// when the store was already empty.
func (s *Store) Reset() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.current.Load()
	next := &Record{version: prev.version + 1}
	s.current.Store(next)
	s.audit.reset()
	s.mu.Unlock()

	s.notify(*next)
}

// AppendAudit records a received line. ReceivedAt defaults to now.
func (s *Store) AppendAudit(e AuditEntry) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = s.clock.Now().UTC()
	}
	s.mu.Lock()
	s.audit.add(e)
	s.mu.Unlock()
}

// Audit returns the retained entries, oldest first, and how many entries
// were dropped since the last reset.
func (s *Store) Audit() ([]AuditEntry, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audit.snapshot(), s.audit.dropped
}

// AuditLines returns the rendered audit text, oldest first.
func (s *Store) AuditLines() []string {
	entries, _ := s.Audit()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text()
	}
	return out
}

// Subscribe registers fn to receive the record after every batch and reset,
// in version order. fn runs on the writer's goroutine and must not write to
// the store.
func (s *Store) Subscribe(fn func(Record)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(r Record) {
	s.subMu.Lock()
	fns := make([]func(Record), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}
