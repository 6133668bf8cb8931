package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

const DefaultSerialBaud = 4800

// SerialSource reads from a serial port. An empty Device picks the first
// /dev/ttyACM* or /dev/ttyUSB* present at open time.
type SerialSource struct {
	Device string
	Baud   int
}

func (s SerialSource) Name() string {
	if s.Device == "" {
		return "serial:auto"
	}
	return "serial:" + s.Device
}

func (s SerialSource) Open(ctx context.Context) (io.ReadCloser, error) {
	device := strings.TrimSpace(s.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return nil, fmt.Errorf("serial auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
	}
	baud := s.Baud
	if baud == 0 {
		baud = DefaultSerialBaud
	}
	f, err := openSerial(device, baud)
	if err != nil {
		return nil, fmt.Errorf("serial open device=%s baud=%d: %w", device, baud, err)
	}
	return f, nil
}

func autoDetectDevice() string {
	for _, prefix := range []string{"/dev/ttyACM", "/dev/ttyUSB"} {
		for i := 0; i < 10; i++ {
			p := fmt.Sprintf("%s%d", prefix, i)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}
