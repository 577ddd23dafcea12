// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Tracker() TrackerConfig

	// Browser Setters
	SetBrowserHeadless(bool)
	SetBrowserViewport(width, height int)

	// Tracker Setters
	SetTrackerPollInterval(d time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	TrackerCfg TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Tracker() TrackerConfig { return c.TrackerCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserViewport(width, height int) {
	c.BrowserCfg.Viewport.Width = width
	c.BrowserCfg.Viewport.Height = height
}
func (c *Config) SetTrackerPollInterval(d time.Duration) { c.TrackerCfg.PollInterval = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ViewportConfig is the initial browser window size.
type ViewportConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// BrowserConfig holds settings for the headless browser instance that backs
// the CDP measurement provider.
type BrowserConfig struct {
	Headless          bool           `mapstructure:"headless" yaml:"headless"`
	Args              []string       `mapstructure:"args" yaml:"args"`
	Viewport          ViewportConfig `mapstructure:"viewport" yaml:"viewport"`
	NavigationTimeout time.Duration  `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// MeasureTimeout bounds a single CDP measurement round trip.
	MeasureTimeout time.Duration `mapstructure:"measure_timeout" yaml:"measure_timeout"`
}

// TrackerConfig tunes the trigger bus and the container streams.
type TrackerConfig struct {
	// PollInterval is the period of the timer trigger source.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// ResizeDebounce is the quiescence window applied to resize events.
	ResizeDebounce time.Duration `mapstructure:"resize_debounce" yaml:"resize_debounce"`
	// BusBuffer is the per-subscriber buffer on the trigger bus.
	BusBuffer int `mapstructure:"bus_buffer" yaml:"bus_buffer"`
	// StreamBuffer is the per-subscriber buffer on container change streams.
	StreamBuffer int `mapstructure:"stream_buffer" yaml:"stream_buffer"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static, so this only fires on a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "spacewatch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.measure_timeout", "5s")

	// -- Tracker --
	v.SetDefault("tracker.poll_interval", "250ms")
	v.SetDefault("tracker.resize_debounce", "250ms")
	v.SetDefault("tracker.bus_buffer", 1)
	v.SetDefault("tracker.stream_buffer", 16)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.TrackerCfg.Validate(); err != nil {
		return fmt.Errorf("tracker configuration invalid: %w", err)
	}
	if c.BrowserCfg.Viewport.Width < 0 || c.BrowserCfg.Viewport.Height < 0 {
		return fmt.Errorf("browser.viewport dimensions must not be negative")
	}
	return nil
}

// Validate checks the TrackerConfig settings.
func (t *TrackerConfig) Validate() error {
	if t.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if t.ResizeDebounce <= 0 {
		return fmt.Errorf("resize_debounce must be a positive duration")
	}
	if t.BusBuffer <= 0 {
		return fmt.Errorf("bus_buffer must be a positive integer")
	}
	if t.StreamBuffer <= 0 {
		return fmt.Errorf("stream_buffer must be a positive integer")
	}
	return nil
}
