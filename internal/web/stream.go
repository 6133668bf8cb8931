package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"nmeaflow/internal/store"
)

const (
	streamWriteWait  = 5 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Diagnostics only; any origin may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// latestRecord holds the newest record not yet sent. put replaces an
// unsent record, so a slow reader skips versions but always ends on the
// latest one.
type latestRecord struct {
	ready chan struct{}

	mu      sync.Mutex
	rec     store.Record
	pending bool
	dropped uint64
}

func newLatestRecord() *latestRecord {
	return &latestRecord{ready: make(chan struct{}, 1)}
}

func (l *latestRecord) put(rec store.Record) {
	l.mu.Lock()
	if l.pending {
		l.dropped++
	}
	l.rec, l.pending = rec, true
	l.mu.Unlock()

	select {
	case l.ready <- struct{}{}:
	default:
	}
}

// take returns the pending record after a signal on ready.
func (l *latestRecord) take() (store.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.rec, l.pending
	l.rec, l.pending = store.Record{}, false
	return rec, ok
}

func (l *latestRecord) droppedCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// handleStream pushes the current record, then the record after every batch
// or reset. A client that falls behind loses intermediate records, never the
// newest one or the connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	latest := newLatestRecord()
	unsubscribe := s.opts.Store.Subscribe(latest.put)
	defer unsubscribe()

	// Reads only to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(rec store.Record) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(rec) == nil
	}
	if !send(s.opts.Store.Snapshot()) {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			s.log.Debug("stream client gone", "dropped", latest.droppedCount())
			return
		case <-r.Context().Done():
			return
		case <-latest.ready:
			rec, ok := latest.take()
			if ok && !send(rec) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
