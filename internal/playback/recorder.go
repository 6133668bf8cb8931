package playback

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Recorder writes received lines to a capture file that Load can replay with
// the original timing.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateRecorder creates path and writes the capture header. start anchors
// the recorded offsets.
func CreateRecorder(path string, start time.Time) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(bw, "# capture started %s\n", start.UTC().Format(time.RFC3339Nano)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{f: f, w: bw, start: start}, nil
}

// Record appends line received at now.
func (r *Recorder) Record(line string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder is closed")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	d := now.Sub(r.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(r.w, "%d\t%s\n", d.Nanoseconds(), line)
	return err
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.w.Flush()
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}
