package ingest

import (
	"context"
	"io"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"nmeaflow/internal/sim"
)

// SimSource streams simulated vessel sentences, one burst per Interval.
type SimSource struct {
	Vessel   sim.Vessel
	Interval time.Duration
	Clock    clock.WithTicker
}

func (s SimSource) Name() string { return "sim" }

func (s SimSource) Open(ctx context.Context) (io.ReadCloser, error) {
	clk := s.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}

	pr, pw := io.Pipe()
	go func() {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		for {
			burst := strings.Join(s.Vessel.Sentences(clk.Now()), "\r\n") + "\r\n"
			if _, err := io.WriteString(pw, burst); err != nil {
				return
			}
			select {
			case <-ctx.Done():
				_ = pw.CloseWithError(ctx.Err())
				return
			case <-ticker.C():
			}
		}
	}()
	return pr, nil
}
