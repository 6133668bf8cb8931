package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

var ErrNoSource = errors.New("ingest: no source configured")

// Source opens a byte stream of newline-delimited sentences. Each Open
// starts a fresh stream; the Manager calls it again after a failure.
type Source interface {
	// Name tags lines from this source, e.g. "tcp:10.0.0.1:10110".
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// TCPSource connects to a TCP NMEA server such as a multiplexer.
type TCPSource struct {
	Addr        string
	DialTimeout time.Duration
}

func (s TCPSource) Name() string { return "tcp:" + s.Addr }

func (s TCPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Addr == "" {
		return nil, fmt.Errorf("tcp source addr is required")
	}
	timeout := s.DialTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := &net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// UDPSource listens for datagrams. A datagram may carry several lines; a
// trailing newline is added when missing so datagrams never merge.
type UDPSource struct {
	Listen string
}

func (s UDPSource) Name() string { return "udp:" + s.Listen }

func (s UDPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Listen == "" {
		return nil, fmt.Errorf("udp source listen addr is required")
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", s.Listen)
	if err != nil {
		return nil, err
	}
	return &datagramReader{pc: pc, buf: make([]byte, 64*1024)}, nil
}

type datagramReader struct {
	pc      net.PacketConn
	buf     []byte
	pending []byte
}

func (d *datagramReader) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		n, _, err := d.pc.ReadFrom(d.buf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			continue
		}
		pkt := d.buf[:n]
		if pkt[n-1] != '\n' {
			pkt = append(pkt, '\n')
		}
		d.pending = pkt
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *datagramReader) Close() error { return d.pc.Close() }

// LocalAddr returns the bound address, useful when listening on port 0.
func (d *datagramReader) LocalAddr() net.Addr { return d.pc.LocalAddr() }

// lineReader splits a stream into lines, cutting lines longer than max.
type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 4096), max: max}
}

// next returns the next line without its terminator. tooLong reports that the
// line exceeded max; line then holds its first max bytes.
func (l *lineReader) next() (line []byte, tooLong bool, err error) {
	for {
		frag, rerr := l.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(frag) > l.max+2 {
				room := l.max - len(line)
				if room > 0 {
					line = append(line, frag[:room]...)
				}
				tooLong = true
			} else {
				line = append(line, frag...)
			}
		}
		if errors.Is(rerr, bufio.ErrBufferFull) {
			continue
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && len(line) > 0 {
				return line, tooLong, nil
			}
			return nil, false, rerr
		}
		return line, tooLong, nil
	}
}
