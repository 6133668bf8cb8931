package store

import "time"

// InvalidPrefix marks audit text for lines rejected by validation.
const InvalidPrefix = "INVALID:"

// AuditEntry is either a received line or an invalid-line marker.
type AuditEntry struct {
	Line       string    `json:"line"`
	Invalid    bool      `json:"invalid"`
	Reason     string    `json:"reason,omitempty"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Text renders the entry the way the audit log displays it.
func (e AuditEntry) Text() string {
	if e.Invalid {
		return InvalidPrefix + e.Reason
	}
	return e.Line
}

// auditRing keeps the newest entries and drops the oldest. Callers hold the
// store's write lock.
type auditRing struct {
	max     int
	entries []AuditEntry
	start   int
	dropped uint64
}

func newAuditRing(max int) *auditRing {
	if max < 0 {
		max = 0
	}
	return &auditRing{max: max, entries: make([]AuditEntry, 0, max)}
}

func (a *auditRing) add(e AuditEntry) {
	if a.max == 0 {
		a.dropped++
		return
	}
	if len(a.entries) < a.max {
		a.entries = append(a.entries, e)
		return
	}
	a.entries[a.start] = e
	a.start = (a.start + 1) % a.max
	a.dropped++
}

func (a *auditRing) snapshot() []AuditEntry {
	out := make([]AuditEntry, 0, len(a.entries))
	out = append(out, a.entries[a.start:]...)
	out = append(out, a.entries[:a.start]...)
	return out
}

func (a *auditRing) reset() {
	a.entries = a.entries[:0]
	a.start = 0
	a.dropped = 0
}
