// Package udp sends NMEA sentences as UDP datagrams, the way chart plotters
// and instrument gateways share data on a boat network.
package udp

import (
	"fmt"
	"net"
	"strings"
)

// maxDatagram keeps a datagram under a typical Ethernet MTU.
const maxDatagram = 1400

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Broadcaster struct {
	dest string
	conn udpConn
}

// NewBroadcaster sends to dest (host:port). Broadcast addresses are allowed.
func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &Broadcaster{dest: dest, conn: conn}, nil
}

func (b *Broadcaster) Dest() string { return b.dest }

// Send writes payload as one datagram.
func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

// SendLines packs CRLF-terminated sentences into as few datagrams as fit.
// A sentence is never split across datagrams.
func (b *Broadcaster) SendLines(lines []string) error {
	var buf strings.Builder
	flush := func() error {
		if buf.Len() == 0 {
			return nil
		}
		err := b.Send([]byte(buf.String()))
		buf.Reset()
		return err
	}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(l)+2 > maxDatagram {
			if err := flush(); err != nil {
				return err
			}
		}
		buf.WriteString(l)
		buf.WriteString("\r\n")
	}
	return flush()
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
