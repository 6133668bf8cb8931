package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const DefaultGPSDAddr = "127.0.0.1:2947"

// gpsdWatchNMEA asks gpsd to relay raw sentences from its receivers.
const gpsdWatchNMEA = "?WATCH={\"enable\":true,\"nmea\":true}\n"

// GPSDSource reads the raw NMEA relay of a gpsd daemon. gpsd's own JSON
// reports on the same connection are dropped.
type GPSDSource struct {
	Addr        string
	DialTimeout time.Duration
}

func (s GPSDSource) addr() string {
	if strings.TrimSpace(s.Addr) == "" {
		return DefaultGPSDAddr
	}
	return s.Addr
}

func (s GPSDSource) Name() string { return "gpsd:" + s.addr() }

func (s GPSDSource) Open(ctx context.Context) (io.ReadCloser, error) {
	timeout := s.DialTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("dial gpsd: %w", err)
	}
	if _, err := io.WriteString(conn, gpsdWatchNMEA); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gpsd watch: %w", err)
	}
	return &gpsdReader{conn: conn, br: bufio.NewReader(conn)}, nil
}

// gpsdReader passes through every line except gpsd JSON objects.
type gpsdReader struct {
	conn    net.Conn
	br      *bufio.Reader
	pending []byte
}

func (r *gpsdReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		line, err := r.br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			// Longer than the buffer: not JSON we need to filter, pass it on.
			r.pending = append(r.pending[:0], line...)
			break
		}
		if len(line) > 0 && line[0] != '{' {
			r.pending = append(r.pending[:0], line...)
		}
		if err != nil {
			if len(r.pending) > 0 {
				break
			}
			return 0, err
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *gpsdReader) Close() error { return r.conn.Close() }
