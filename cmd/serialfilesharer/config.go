package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescp17/serialFileSharer/pkg/link"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
)

// Config is the on-disk configuration. Flags given on the command line
// override values loaded from the file.
type Config struct {
	Link     link.Config     `json:"link"`
	Transfer transfer.Config `json:"transfer"`

	// WriteRate paces writes in bytes per second. Zero disables pacing.
	WriteRate int `json:"write_rate"`

	// Timeout bounds each read or write on links that support deadlines.
	Timeout Duration `json:"timeout"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
	TUI      bool   `json:"tui"`
}

// Duration accepts "1.5s"-style strings in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func DefaultConfig() *Config {
	return &Config{
		Link:     link.DefaultConfig(),
		Transfer: *transfer.DefaultConfig(),
		LogLevel: "info",
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if c.Link.Device == "" {
		return errors.New("device cannot be empty")
	}
	if c.Link.Baud < 0 {
		return errors.New("baud cannot be negative")
	}
	if c.WriteRate < 0 {
		return errors.New("write_rate cannot be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// options holds the persistent flag values.
type options struct {
	configPath string
	device     string
	baud       int
	syncWrites bool
	packetSize int
	writeRate  int
	timeout    time.Duration
	logLevel   string
	logFile    string
	tui        bool
}

func (o *options) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "Path to a JSON config file")
	flags.StringVar(&o.device, "device", link.DefaultDevice, "Serial device path, or tcp://host:port for a bridge")
	flags.IntVar(&o.baud, "baud", link.DefaultBaud, "Serial line speed")
	flags.BoolVar(&o.syncWrites, "sync-writes", false, "Open the device with O_SYNC")
	flags.IntVar(&o.packetSize, "packet-size", transfer.DefaultPacketSize, "Maximum payload bytes per packet (1-65535)")
	flags.IntVar(&o.writeRate, "write-rate", 0, "Pace writes to this many bytes per second (0 = unpaced)")
	flags.DurationVar(&o.timeout, "timeout", 0, "Per-operation I/O timeout on links that support it (0 = none)")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&o.logFile, "log-file", "", "Write logs to this file instead of stderr")
	flags.BoolVar(&o.tui, "tui", false, "Show an interactive progress view")
}

// resolve loads the config file and applies every flag the user set.
func (o *options) resolve(cmd *cobra.Command) (*Config, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Link.Device = o.device
	}
	if flags.Changed("baud") {
		cfg.Link.Baud = o.baud
	}
	if flags.Changed("sync-writes") {
		cfg.Link.SyncWrites = o.syncWrites
	}
	if flags.Changed("packet-size") {
		cfg.Transfer.PacketSize = o.packetSize
	}
	if flags.Changed("write-rate") {
		cfg.WriteRate = o.writeRate
	}
	if flags.Changed("timeout") {
		cfg.Timeout = Duration(o.timeout)
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if flags.Changed("tui") {
		cfg.TUI = o.tui
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// setupLogging installs the default slog logger. With the TUI on and no log
// file, logs go to debug.log so they do not tear the view.
func setupLogging(cfg *Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	out := stderr
	closeFn := func() {}
	path := cfg.LogFile
	if path == "" && cfg.TUI {
		path = "debug.log"
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() {
			if err := f.Close(); err != nil {
				slog.Warn("failed to close log file", "error", err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
