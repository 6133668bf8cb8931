package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"nmeaflow/internal/config"
	"nmeaflow/internal/ingest"
	"nmeaflow/internal/logging"
	"nmeaflow/internal/metrics"
	"nmeaflow/internal/playback"
	"nmeaflow/internal/sim"
	"nmeaflow/internal/store"
	"nmeaflow/internal/web"
)

func newRunCommand() *cobra.Command {
	var configPath string
	logOpts := logging.NewOptions()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest from the configured source and serve diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			cmd.Flags().Visit(func(f *pflag.Flag) {
				switch f.Name {
				case "log.level":
					cfg.Log.Level = logOpts.Level
				case "log.format":
					cfg.Log.Format = logOpts.Format
				case "log.enable-color":
					cfg.Log.EnableColor = logOpts.EnableColor
				case "log.disable-caller":
					cfg.Log.DisableCaller = logOpts.DisableCaller
				case "log.output-paths":
					cfg.Log.OutputPaths = logOpts.OutputPaths
				}
			})
			if err := cfg.Log.Validate(); err != nil {
				return err
			}

			logs := web.NewLogBuffer(2000)
			log, err := logging.NewLogger(&cfg.Log, logs)
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync(log) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(cfg, log, logs)
			if err != nil {
				log.Error(err, "engine init failed")
				return err
			}
			return eng.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config. Empty uses defaults and NMEAFLOW_* environment variables.")
	logOpts.AddFlags(cmd.Flags())
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

// engine wires the store, the ingest manager, the optional recorder and
// the diagnostics server for one run of the binary.
type engine struct {
	cfg      config.Config
	log      logging.Logger
	registry *prometheus.Registry
	store    *store.Store
	mgr      *ingest.Manager
	recorder *playback.Recorder
	web      *web.Server
}

func newEngine(cfg config.Config, log logging.Logger, logs *web.LogBuffer) (*engine, error) {
	log = logging.OrNop(log)
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	r := &engine{
		cfg:      cfg,
		log:      log,
		registry: reg,
		store:    store.New(store.Options{AuditSize: cfg.Store.AuditSize}),
	}

	var recorder ingest.LineRecorder
	if cfg.Record.Enable {
		rec, err := playback.CreateRecorder(cfg.Record.Path, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("create recorder: %w", err)
		}
		r.recorder = rec
		recorder = rec
	}

	r.mgr, err = ingest.NewManager(ingest.Options{
		Store:            r.store,
		Log:              log,
		Metrics:          m,
		ReconnectInitial: cfg.Source.ReconnectInitial,
		ReconnectMax:     cfg.Source.ReconnectMax,
		MaxLineBytes:     cfg.Source.MaxLineBytes,
		Recorder:         recorder,
	})
	if err != nil {
		r.closeRecorder()
		return nil, err
	}
	r.mgr.OnState(func(st ingest.Status) {
		log.Debug("connection state", "state", st.State, "source", st.Source, "lastError", st.LastError)
	})

	r.web, err = web.NewServer(web.Options{
		Store:       r.store,
		Control:     r.mgr,
		Gatherer:    reg,
		Logs:        logs,
		PlaybackDir: cfg.Playback.Dir,
		Log:         log,
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// buildSource maps the source section to a live Source. Playback has no
// Source and returns nil.
func buildSource(cfg config.Config) (ingest.Source, error) {
	s := cfg.Source
	switch s.Kind {
	case config.KindTCP:
		return ingest.TCPSource{Addr: s.Addr, DialTimeout: s.DialTimeout}, nil
	case config.KindUDP:
		return ingest.UDPSource{Listen: s.Listen}, nil
	case config.KindSerial:
		return ingest.SerialSource{Device: s.Device, Baud: s.Baud}, nil
	case config.KindGPSD:
		return ingest.GPSDSource{Addr: s.Addr, DialTimeout: s.DialTimeout}, nil
	case config.KindSim:
		return ingest.SimSource{
			Vessel: sim.Vessel{
				CenterLatDeg: cfg.Sim.CenterLatDeg,
				CenterLonDeg: cfg.Sim.CenterLonDeg,
				RadiusNm:     cfg.Sim.RadiusNm,
				Period:       cfg.Sim.Period,
			},
			Interval: cfg.Sim.Interval,
		}, nil
	case config.KindPlayback:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", s.Kind)
	}
}

func (r *engine) startInput(ctx context.Context) error {
	if r.cfg.Source.Kind == config.KindPlayback {
		p := r.cfg.Playback
		return r.mgr.StartPlayback(p.Path, playback.Options{Speed: p.Speed, Loop: p.Loop, BaseInterval: p.BaseInterval})
	}
	src, err := buildSource(r.cfg)
	if err != nil {
		return err
	}
	return r.mgr.Connect(ctx, src)
}

// Run starts input and the HTTP server and blocks until ctx is done or the
// server fails. Everything is stopped before it returns.
func (r *engine) Run(ctx context.Context) error {
	defer r.Close()

	if err := r.startInput(ctx); err != nil {
		r.log.Error(err, "input start failed", "kind", r.cfg.Source.Kind)
		return err
	}
	r.log.Info("nmeaflow started", "source", r.cfg.Source.Kind, "http", r.cfg.HTTP.Listen)

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.HTTP.Listen != "" {
		g.Go(func() error {
			if err := web.Serve(gctx, r.cfg.HTTP.Listen, r.web.Handler()); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()
	r.log.Info("nmeaflow stopping")
	return err
}

func (r *engine) Close() {
	if r.mgr != nil {
		r.mgr.Close()
	}
	r.closeRecorder()
}

func (r *engine) closeRecorder() {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Close(); err != nil {
		r.log.Warn("recorder close failed", "error", err)
	}
}
