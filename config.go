package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog"
)

const (
	DefaultConfigFile = "jackc.yaml"
	DefaultInclude    = "**/*.jack"
	DefaultDebounce   = 200 * time.Millisecond

	EmitVM     = "vm"
	EmitTokens = "tokens"

	ConsoleLogFormat = "console"
	JSONLogFormat    = "json"
)

type Config struct {
	Source    string `yaml:"source"`
	Include   string `yaml:"include"`
	Emit      string `yaml:"emit"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Watch     bool   `yaml:"watch"`
	Debounce  string `yaml:"debounce"`
}

func DefaultConfig() Config {
	return Config{
		Include:   DefaultInclude,
		Emit:      EmitVM,
		LogLevel:  zerolog.InfoLevel.String(),
		LogFormat: ConsoleLogFormat,
		Debounce:  DefaultDebounce.String(),
	}
}

// LoadConfig reads a YAML config file over the defaults. A missing file is
// only an error if required is set.
func LoadConfig(path string, required bool) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return config, nil
		}
		return config, fmt.Errorf("could not read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Source == "" {
		return errors.New("no source file or directory given")
	}
	if !doublestar.ValidatePattern(c.Include) {
		return fmt.Errorf("invalid include pattern %q", c.Include)
	}
	switch c.Emit {
	case EmitVM, EmitTokens:
	default:
		return fmt.Errorf("unknown emit mode %q, expected %q or %q", c.Emit, EmitVM, EmitTokens)
	}
	switch c.LogFormat {
	case ConsoleLogFormat, JSONLogFormat:
	default:
		return fmt.Errorf("unknown log format %q, expected %q or %q", c.LogFormat, ConsoleLogFormat, JSONLogFormat)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, err := c.DebounceDuration(); err != nil {
		return err
	}
	return nil
}

func (c Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid debounce duration %q: %w", c.Debounce, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("debounce duration must be positive, got %s", d)
	}
	return d, nil
}

func (c Config) NewLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if c.LogFormat == ConsoleLogFormat {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
