package logging

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Options configures NewLogger.
type Options struct {
	Name string `yaml:"name"`
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format        string   `yaml:"format" env:"FORMAT"`
	EnableColor   bool     `yaml:"enable_color"`
	DisableCaller bool     `yaml:"disable_caller"`
	OutputPaths   []string `yaml:"output_paths"`
}

func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		OutputPaths: []string{"stderr"},
	}
}

// Validate reports invalid settings.
func (o *Options) Validate() error {
	switch o.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", o.Level)
	}
	switch o.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be 'json' or 'console' (got %q)", o.Format)
	}
	return nil
}

// AddFlags binds the options to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level (debug, info, warn, error).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output format ('json' or 'console').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the caller field.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log output paths (e.g. 'stderr', '/var/log/nmeaflow.log').")
}
