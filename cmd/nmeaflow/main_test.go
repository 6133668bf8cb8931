package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"nmeaflow/internal/config"
	"nmeaflow/internal/ingest"
	"nmeaflow/internal/playback"
	"nmeaflow/internal/sim"
	"nmeaflow/internal/store"
)

const testCapture = `# capture started 2025-01-01T00:00:00Z
0	$GPHDT,274.07,T*03
500000000	$SDDBT,036.4,f,11.1,M,06.0,F*2B
900000000	$GPHDT,274.07,T*00
1000000000	garbage
1200000000	$GPGSV,1,1,00*79
1500000000	$GPHDT,abc,T*7B
`

func writeCapture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.nmea")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestSummarizeCapture(t *testing.T) {
	lines, err := playback.NewReader(strings.NewReader(testCapture)).ReadAll()
	require.NoError(t, err)

	s := summarizeCapture(lines)
	assert.Equal(t, 6, s.Lines)
	assert.Equal(t, 4, s.Valid)
	assert.Equal(t, 1, s.ChecksumFail)
	assert.Equal(t, 1, s.Malformed)
	assert.Equal(t, 1, s.Unsupported)
	assert.Equal(t, 1, s.Mismatch)
	assert.Equal(t, 2, s.Updates)
	assert.Equal(t, 1500*time.Millisecond, s.Span)
	assert.Equal(t, map[string]int{"HDT": 2, "DBT": 1, "GSV": 1}, s.TypeCounts)
}

func TestPrintCaptureSummary(t *testing.T) {
	path := writeCapture(t, testCapture)
	var out bytes.Buffer
	_, err := printCaptureSummary(&out, path)
	require.NoError(t, err)

	text := out.String()
	for _, want := range []string{"PATH:", path, "LINES:", "CHECKSUM FAIL:", "TYPE", "HDT", "INVALID REASON"} {
		assert.Contains(t, text, want)
	}

	_, err = printCaptureSummary(&out, "  ")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	path := writeCapture(t, testCapture)

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"check", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "VALID:")

	root = newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"check", "--strict", path})
	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidLines))

	root = newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"check"})
	assert.Error(t, root.Execute())
}

func TestBuildSource(t *testing.T) {
	cases := []struct {
		kind string
		want string
	}{
		{config.KindTCP, "tcp:127.0.0.1:10110"},
		{config.KindSerial, "serial:/dev/ttyUSB0"},
		{config.KindGPSD, "gpsd:127.0.0.1:10110"},
		{config.KindSim, "sim"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			cfg := config.Config{Source: config.SourceConfig{Kind: tc.kind, Addr: "127.0.0.1:10110", Device: "/dev/ttyUSB0"}}
			src, err := buildSource(cfg)
			require.NoError(t, err)
			assert.Equal(t, tc.want, src.Name())
		})
	}

	src, err := buildSource(config.Config{Source: config.SourceConfig{Kind: config.KindUDP, Listen: ":10110"}})
	require.NoError(t, err)
	assert.IsType(t, ingest.UDPSource{}, src)

	src, err = buildSource(config.Config{Source: config.SourceConfig{Kind: config.KindPlayback}})
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = buildSource(config.Config{Source: config.SourceConfig{Kind: "can"}})
	assert.Error(t, err)
}

func TestEngine_PlaybackRun(t *testing.T) {
	path := writeCapture(t, testCapture)
	recPath := filepath.Join(t.TempDir(), "rec.nmea")
	cfg := config.Config{
		Source:   config.SourceConfig{Kind: config.KindPlayback},
		Playback: config.PlaybackConfig{Path: path, Speed: 100},
		Record:   config.RecordConfig{Enable: true, Path: recPath},
	}
	require.NoError(t, config.DefaultAndValidate(&cfg))

	eng, err := newEngine(cfg, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := eng.store.Snapshot().Get(store.FieldDepth)
		return ok
	}, 3*time.Second, 5*time.Millisecond)
	h, ok := eng.store.Snapshot().Scalar(store.FieldHeading)
	require.True(t, ok)
	assert.InDelta(t, 274.07, h, 1e-9)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop")
	}
	ps, ok := eng.mgr.PlaybackStatus()
	require.True(t, ok)
	assert.False(t, ps.Active)

	// Playback input is not live input and is not recorded.
	lines, err := playback.Load(recPath)
	assert.ErrorIs(t, err, playback.ErrNoLines)
	assert.Empty(t, lines)
}

func TestEngine_BadPlaybackPath(t *testing.T) {
	cfg := config.Config{
		Source:   config.SourceConfig{Kind: config.KindPlayback},
		Playback: config.PlaybackConfig{Path: filepath.Join(t.TempDir(), "missing.nmea")},
	}
	require.NoError(t, config.DefaultAndValidate(&cfg))
	eng, err := newEngine(cfg, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, eng.Run(context.Background()), os.ErrNotExist)
}

type captureSender struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *captureSender) SendLines(lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, lines)
	return nil
}

func TestRunSim(t *testing.T) {
	out := &captureSender{}
	err := runSim(context.Background(), out, sim.Vessel{CenterLatDeg: 50.8, CenterLonDeg: -1.3}, clock.RealClock{}, time.Millisecond, 3)
	require.NoError(t, err)
	require.Len(t, out.batches, 3)
	for _, b := range out.batches {
		assert.Len(t, b, 8)
	}

	assert.Error(t, runSim(context.Background(), out, sim.Vessel{}, clock.RealClock{}, 0, 1))
}

func TestRunSim_StopsOnCancel(t *testing.T) {
	out := &captureSender{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runSim(ctx, out, sim.Vessel{}, clock.RealClock{}, time.Hour, 0))
	assert.Len(t, out.batches, 1)
}
