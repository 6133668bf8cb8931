// Package web serves the diagnostics HTTP API: the current record, the audit
// log, connection and playback state, a websocket stream of record updates
// and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nmeaflow/internal/ingest"
	"nmeaflow/internal/logging"
	"nmeaflow/internal/playback"
	"nmeaflow/internal/store"
)

// Controller is the part of ingest.Manager the API drives.
type Controller interface {
	Status() ingest.Status
	PlaybackStatus() (playback.Status, bool)
	StartPlayback(path string, opts playback.Options) error
	StopPlayback()
}

var _ Controller = (*ingest.Manager)(nil)

type Options struct {
	Store   *store.Store
	Control Controller
	// Gatherer backs /metrics. Nil omits the endpoint.
	Gatherer prometheus.Gatherer
	Logs     *LogBuffer
	// PlaybackDir is the only directory POST /api/playback may read from.
	// Empty disables starting playback over HTTP.
	PlaybackDir string
	Log         logging.Logger
}

type Server struct {
	opts Options
	log  logging.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("web server requires a store")
	}
	if opts.Control == nil {
		return nil, errors.New("web server requires a controller")
	}
	return &Server{opts: opts, log: logging.OrNop(opts.Log).WithName("web")}, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	api.HandleFunc("/audit", s.handleAudit).Methods(http.MethodGet)
	api.HandleFunc("/connection", s.handleConnection).Methods(http.MethodGet)
	api.HandleFunc("/playback", s.handlePlaybackStatus).Methods(http.MethodGet)
	api.HandleFunc("/playback", s.handlePlaybackStart).Methods(http.MethodPost)
	api.HandleFunc("/playback", s.handlePlaybackStop).Methods(http.MethodDelete)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	api.Handle("/about", AboutHandler()).Methods(http.MethodGet)
	if s.opts.Logs != nil {
		api.Handle("/logs", s.opts.Logs.Handler()).Methods(http.MethodGet)
	}

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) handleData(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Store.Snapshot())
}

type AuditResponse struct {
	Dropped uint64             `json:"dropped"`
	Entries []store.AuditEntry `json:"entries"`
	Lines   []string           `json:"lines"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	tail := 0
	if v := strings.TrimSpace(r.URL.Query().Get("tail")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "tail must be a positive integer", http.StatusBadRequest)
			return
		}
		tail = n
	}
	entries, dropped := s.opts.Store.Audit()
	if tail > 0 && tail < len(entries) {
		entries = entries[len(entries)-tail:]
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Text()
	}
	writeJSON(w, http.StatusOK, AuditResponse{Dropped: dropped, Entries: entries, Lines: lines})
}

func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Control.Status())
}

func (s *Server) handlePlaybackStatus(w http.ResponseWriter, _ *http.Request) {
	st, ok := s.opts.Control.PlaybackStatus()
	if !ok {
		http.Error(w, "no playback session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PlaybackRequest starts a session. Path is relative to the playback
// directory. BaseInterval is a Go duration string.
type PlaybackRequest struct {
	Path         string  `json:"path"`
	Speed        float64 `json:"speed"`
	Loop         bool    `json:"loop"`
	BaseInterval string  `json:"baseInterval,omitempty"`
}

func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.PlaybackDir == "" {
		http.Error(w, "playback over http is disabled", http.StatusForbidden)
		return
	}
	var req PlaybackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	path, err := s.resolvePlayback(req.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts := playback.Options{Speed: req.Speed, Loop: req.Loop}
	if req.BaseInterval != "" {
		d, err := time.ParseDuration(req.BaseInterval)
		if err != nil {
			http.Error(w, "baseInterval must be a duration", http.StatusBadRequest)
			return
		}
		opts.BaseInterval = d
	}

	if err := s.opts.Control.StartPlayback(path, opts); err != nil {
		code := http.StatusBadRequest
		switch {
		case errors.Is(err, fs.ErrNotExist):
			code = http.StatusNotFound
		case errors.Is(err, playback.ErrNoLines):
			code = http.StatusUnprocessableEntity
		}
		s.log.Warn("playback start rejected", "path", path, "error", err)
		http.Error(w, err.Error(), code)
		return
	}
	st, _ := s.opts.Control.PlaybackStatus()
	writeJSON(w, http.StatusAccepted, st)
}

// resolvePlayback maps a request path into PlaybackDir. Traversal above the
// directory is clamped to it.
func (s *Server) resolvePlayback(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("path is required")
	}
	rel := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(p))
	if rel == string(filepath.Separator) {
		return "", errors.New("path must name a file")
	}
	return filepath.Join(s.opts.PlaybackDir, rel), nil
}

func (s *Server) handlePlaybackStop(w http.ResponseWriter, _ *http.Request) {
	s.opts.Control.StopPlayback()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.opts.Store.Reset()
	s.log.Info("store reset over http")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	snap := s.opts.Store.Snapshot()
	st := s.opts.Control.Status()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>nmeaflow</title></head><body>")
	_, _ = fmt.Fprintf(w, "<h1>nmeaflow</h1>")
	_, _ = fmt.Fprintf(w, "<pre>state=%s\nsource=%s\nlines=%d\nversion=%d\nfields=%d</pre>",
		st.State, st.Source, st.Lines, snap.Version(), snap.Len(),
	)
	_, _ = fmt.Fprintf(w, "<p><a href=\"/api/data\">data</a> <a href=\"/api/audit\">audit</a> <a href=\"/api/connection\">connection</a> <a href=\"/metrics\">metrics</a></p>")
	_, _ = fmt.Fprintf(w, "</body></html>")
}

// Serve runs h on listenAddr until ctx is done.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
