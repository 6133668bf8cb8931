package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"nmeaflow/internal/logging"
	"nmeaflow/internal/playback"
)

// Source kinds.
const (
	KindTCP      = "tcp"
	KindUDP      = "udp"
	KindSerial   = "serial"
	KindGPSD     = "gpsd"
	KindPlayback = "playback"
	KindSim      = "sim"
)

// EnvPrefix prefixes every environment override, e.g. NMEAFLOW_SOURCE_ADDR.
const EnvPrefix = "NMEAFLOW_"

type Config struct {
	Source   SourceConfig    `yaml:"source" envPrefix:"SOURCE_"`
	Playback PlaybackConfig  `yaml:"playback" envPrefix:"PLAYBACK_"`
	Sim      SimConfig       `yaml:"sim" envPrefix:"SIM_"`
	Store    StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Record   RecordConfig    `yaml:"record" envPrefix:"RECORD_"`
	HTTP     HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Log      logging.Options `yaml:"log" envPrefix:"LOG_"`
}

type SourceConfig struct {
	Kind   string `yaml:"kind" env:"KIND"`
	Addr   string `yaml:"addr" env:"ADDR"`
	Listen string `yaml:"listen" env:"LISTEN"`
	// Device is a serial device path. Empty auto-detects /dev/ttyACM* and
	// /dev/ttyUSB*.
	Device string `yaml:"device" env:"DEVICE"`
	Baud   int    `yaml:"baud" env:"BAUD"`

	DialTimeout      time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial" env:"RECONNECT_INITIAL"`
	ReconnectMax     time.Duration `yaml:"reconnect_max" env:"RECONNECT_MAX"`
	MaxLineBytes     int           `yaml:"max_line_bytes" env:"MAX_LINE_BYTES"`
}

type PlaybackConfig struct {
	Path         string        `yaml:"path" env:"PATH"`
	Speed        float64       `yaml:"speed" env:"SPEED"`
	Loop         bool          `yaml:"loop" env:"LOOP"`
	BaseInterval time.Duration `yaml:"base_interval" env:"BASE_INTERVAL"`
	// Dir limits which captures the HTTP API may start. Empty disables
	// starting playback over HTTP.
	Dir string `yaml:"dir" env:"DIR"`
}

type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg" env:"CENTER_LAT_DEG"`
	CenterLonDeg float64       `yaml:"center_lon_deg" env:"CENTER_LON_DEG"`
	RadiusNm     float64       `yaml:"radius_nm" env:"RADIUS_NM"`
	Period       time.Duration `yaml:"period" env:"PERIOD"`
	Interval     time.Duration `yaml:"interval" env:"INTERVAL"`
}

type StoreConfig struct {
	AuditSize int `yaml:"audit_size" env:"AUDIT_SIZE"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable" env:"ENABLE"`
	Path   string `yaml:"path" env:"PATH"`
}

type HTTPConfig struct {
	// Listen is the diagnostics HTTP address. Empty disables the server.
	Listen string `yaml:"listen" env:"LISTEN"`
}

// Load reads the YAML file at path, applies NMEAFLOW_* environment
// overrides, then defaults and validation.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parse(b, nil)
}

// FromEnv builds a config from defaults and the environment only.
func FromEnv() (Config, error) {
	return parse(nil, nil)
}

func parse(b []byte, environ map[string]string) (Config, error) {
	cfg := Config{Log: *logging.NewOptions()}
	if len(bytes.TrimSpace(b)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills zero values with defaults and rejects invalid
// settings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	s := &cfg.Source
	if s.Kind == "" {
		s.Kind = KindTCP
	}
	if s.DialTimeout <= 0 {
		s.DialTimeout = 2 * time.Second
	}
	if s.ReconnectInitial <= 0 {
		s.ReconnectInitial = 250 * time.Millisecond
	}
	if s.ReconnectMax <= 0 {
		s.ReconnectMax = 10 * time.Second
	}
	if s.MaxLineBytes <= 0 {
		s.MaxLineBytes = 4096
	}

	switch s.Kind {
	case KindTCP:
		if s.Addr == "" {
			return fmt.Errorf("source.addr is required when source.kind is 'tcp'")
		}
	case KindUDP:
		if s.Listen == "" {
			return fmt.Errorf("source.listen is required when source.kind is 'udp'")
		}
	case KindSerial:
		if s.Baud == 0 {
			s.Baud = 4800
		}
		switch s.Baud {
		case 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800:
		default:
			return fmt.Errorf("source.baud %d is not supported", s.Baud)
		}
	case KindGPSD:
		if s.Addr == "" {
			s.Addr = "127.0.0.1:2947"
		}
	case KindPlayback:
		if cfg.Playback.Path == "" {
			return fmt.Errorf("playback.path is required when source.kind is 'playback'")
		}
	case KindSim:
	default:
		return fmt.Errorf("source.kind must be one of tcp, udp, serial, gpsd, playback, sim (got %q)", s.Kind)
	}
	if s.ReconnectMax < s.ReconnectInitial {
		return fmt.Errorf("source.reconnect_max must be >= source.reconnect_initial")
	}

	p := &cfg.Playback
	if p.Speed == 0 {
		p.Speed = 1
	}
	if !(p.Speed >= playback.MinSpeed && p.Speed <= playback.MaxSpeed) {
		return fmt.Errorf("playback.speed must be within [%v, %v]", playback.MinSpeed, playback.MaxSpeed)
	}
	if p.BaseInterval == 0 {
		p.BaseInterval = time.Second
	}
	if p.BaseInterval < 0 {
		return fmt.Errorf("playback.base_interval must be >= 0")
	}

	sim := &cfg.Sim
	if sim.CenterLatDeg == 0 && sim.CenterLonDeg == 0 {
		sim.CenterLatDeg = 50.7680
		sim.CenterLonDeg = -1.2980
	}
	if sim.CenterLatDeg < -85 || sim.CenterLatDeg > 85 {
		return fmt.Errorf("sim.center_lat_deg must be within [-85, 85]")
	}
	if sim.CenterLonDeg < -180 || sim.CenterLonDeg > 180 {
		return fmt.Errorf("sim.center_lon_deg must be within [-180, 180]")
	}
	if sim.RadiusNm <= 0 {
		sim.RadiusNm = 0.5
	}
	if sim.Period <= 0 {
		sim.Period = 10 * time.Minute
	}
	if sim.Interval <= 0 {
		sim.Interval = time.Second
	}

	if cfg.Store.AuditSize == 0 {
		cfg.Store.AuditSize = 500
	}
	if cfg.Store.AuditSize < 0 {
		return fmt.Errorf("store.audit_size must be >= 0")
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	return cfg.Log.Validate()
}
