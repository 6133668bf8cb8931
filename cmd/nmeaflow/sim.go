package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"nmeaflow/internal/sim"
	"nmeaflow/internal/udp"
)

type lineSender interface {
	SendLines(lines []string) error
}

func newSimCommand() *cobra.Command {
	var (
		dest     string
		interval time.Duration
		count    int
		vessel   sim.Vessel
	)
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Broadcast simulated vessel sentences over UDP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := udp.NewBroadcaster(dest)
			if err != nil {
				return fmt.Errorf("udp broadcaster init failed: %w", err)
			}
			defer b.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.ErrOrStderr(), "sim: udp dest=%s interval=%s\n", b.Dest(), interval)
			return runSim(ctx, b, vessel, clock.RealClock{}, interval, count)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&dest, "udp", "127.0.0.1:10110", "UDP destination host:port. Broadcast addresses are allowed.")
	fs.DurationVar(&interval, "interval", time.Second, "Time between sentence bursts.")
	fs.IntVar(&count, "count", 0, "Stop after this many bursts. 0 runs until interrupted.")
	fs.Float64Var(&vessel.CenterLatDeg, "lat", 50.7680, "Track center latitude in degrees.")
	fs.Float64Var(&vessel.CenterLonDeg, "lon", -1.2980, "Track center longitude in degrees.")
	fs.Float64Var(&vessel.RadiusNm, "radius-nm", 0.5, "Track radius in nautical miles.")
	return cmd
}

// runSim sends one burst immediately and then one per interval.
func runSim(ctx context.Context, out lineSender, v sim.Vessel, clk clock.WithTicker, interval time.Duration, count int) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for sent := 0; count <= 0 || sent < count; sent++ {
		if sent > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C():
			}
		}
		if err := out.SendLines(v.Sentences(clk.Now())); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	return nil
}
