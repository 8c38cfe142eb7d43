package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/intercept"
	"github.com/binderveil/binderveil/internal/parcel"
)

// DefaultPath is where the CLI looks for its configuration.
const DefaultPath = "/data/adb/modules/binderveil/config.yml"

type Config struct {
	// Targets are glob patterns of process names to hook.
	Targets   []string        `yaml:"targets"`
	Blocklist BlocklistConfig `yaml:"blocklist"`
	Parcel    ParcelConfig    `yaml:"parcel"`
	Intercept InterceptConfig `yaml:"intercept"`
	Companion CompanionConfig `yaml:"companion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// BlocklistConfig locates and describes the list file.
type BlocklistConfig struct {
	// Path is the primary file edited by the CLI and served first.
	Path string `yaml:"path"`
	// MirrorPath is the module copy, served when Path is missing.
	MirrorPath string `yaml:"mirror_path"`
	// Format is "byte" or "word".
	Format string `yaml:"format"`
	// Convention is "odd-byte" or "char-count".
	Convention string `yaml:"convention"`
	MaxSize    string `yaml:"max_size"`
}

// ParcelConfig tunes envelope recognition.
type ParcelConfig struct {
	// Shape is "auto" or a header word count 1-3.
	Shape string `yaml:"shape"`
	// Check is "length" or "exact".
	Check         string   `yaml:"check"`
	TrailingWords int      `yaml:"trailing_words"`
	Opcodes       []uint32 `yaml:"opcodes"`
}

type InterceptConfig struct {
	// Hook is "ioctl" or "transact".
	Hook string `yaml:"hook"`
	// Strategy is "forward" or "tail".
	Strategy string `yaml:"strategy"`
	Library  string `yaml:"library"`
}

type CompanionConfig struct {
	SocketPath     string   `yaml:"socket_path"`
	SocketMode     string   `yaml:"socket_mode"`
	AllowedUIDs    []uint32 `yaml:"allowed_uids"`
	Watch          bool     `yaml:"watch"`
	ReloadDebounce string   `yaml:"reload_debounce"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromBytes loads configuration from bytes without applying environment
// overrides. This is intended for testing where env vars should not interfere.
func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{"com.android.vending", "com.android.vending:background"}
	}

	if cfg.Blocklist.Path == "" {
		cfg.Blocklist.Path = "/sdcard/detach.bin"
	}
	if cfg.Blocklist.MirrorPath == "" {
		cfg.Blocklist.MirrorPath = "/data/adb/modules/binderveil/detach.bin"
	}
	if cfg.Blocklist.Format == "" {
		cfg.Blocklist.Format = "byte"
	}
	if cfg.Blocklist.Convention == "" {
		cfg.Blocklist.Convention = "odd-byte"
	}
	if cfg.Blocklist.MaxSize == "" {
		cfg.Blocklist.MaxSize = "512"
	}

	if cfg.Parcel.Shape == "" {
		cfg.Parcel.Shape = "auto"
	}
	if cfg.Parcel.Check == "" {
		cfg.Parcel.Check = "length"
	}

	if cfg.Intercept.Hook == "" {
		cfg.Intercept.Hook = "ioctl"
	}
	if cfg.Intercept.Strategy == "" {
		cfg.Intercept.Strategy = "forward"
	}
	if cfg.Intercept.Library == "" {
		cfg.Intercept.Library = "libbinder.so"
	}

	if cfg.Companion.SocketPath == "" {
		cfg.Companion.SocketPath = "/dev/socket/binderveil"
	}
	if cfg.Companion.SocketMode == "" {
		cfg.Companion.SocketMode = "0666"
	}
	if cfg.Companion.ReloadDebounce == "" {
		cfg.Companion.ReloadDebounce = "200ms"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9464"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BINDERVEIL_BLOCKLIST"); v != "" {
		cfg.Blocklist.Path = v
	}
	if v := os.Getenv("BINDERVEIL_SOCKET"); v != "" {
		cfg.Companion.SocketPath = v
	}
	if v := os.Getenv("BINDERVEIL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BINDERVEIL_SHAPE"); v != "" {
		cfg.Parcel.Shape = v
	}
	if v := os.Getenv("BINDERVEIL_METRICS_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
	}
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.BlocklistOptions(); err != nil {
		return err
	}
	if _, err := cfg.Validator(); err != nil {
		return err
	}
	if cfg.Parcel.TrailingWords < 0 {
		return fmt.Errorf("parcel.trailing_words must be >= 0")
	}
	if _, err := intercept.ParseMatchStrategy(cfg.Intercept.Strategy); err != nil {
		return fmt.Errorf("intercept.strategy: %w", err)
	}
	switch cfg.Intercept.Hook {
	case "ioctl", "transact":
	default:
		return fmt.Errorf("invalid intercept.hook %q", cfg.Intercept.Hook)
	}
	if _, err := cfg.SocketMode(); err != nil {
		return err
	}
	if d, err := time.ParseDuration(cfg.Companion.ReloadDebounce); err != nil || d < 0 {
		return fmt.Errorf("invalid companion.reload_debounce %q", cfg.Companion.ReloadDebounce)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", cfg.Logging.Format)
	}
	return nil
}

// BlocklistOptions converts the blocklist section.
func (c *Config) BlocklistOptions() (blocklist.Options, error) {
	format, err := blocklist.ParseFormat(c.Blocklist.Format)
	if err != nil {
		return blocklist.Options{}, fmt.Errorf("blocklist.format: %w", err)
	}
	conv, err := blocklist.ParseConvention(c.Blocklist.Convention)
	if err != nil {
		return blocklist.Options{}, fmt.Errorf("blocklist.convention: %w", err)
	}
	size, err := ParseByteSize(c.Blocklist.MaxSize)
	if err != nil {
		return blocklist.Options{}, fmt.Errorf("blocklist.max_size: %w", err)
	}
	if size <= 0 || size > 1<<20 {
		return blocklist.Options{}, fmt.Errorf("blocklist.max_size must be between 1 and 1MiB")
	}
	return blocklist.Options{Format: format, Convention: conv, MaxSize: int(size)}, nil
}

// Validator converts the parcel section. A zero Shape means detect from the
// platform.
func (c *Config) Validator() (parcel.Validator, error) {
	var v parcel.Validator
	if !strings.EqualFold(c.Parcel.Shape, "auto") {
		shape, err := parcel.ParseShape(c.Parcel.Shape)
		if err != nil {
			return v, fmt.Errorf("parcel.shape: %w", err)
		}
		v.Shape = shape
	}
	check, err := parcel.ParseCheck(c.Parcel.Check)
	if err != nil {
		return v, fmt.Errorf("parcel.check: %w", err)
	}
	v.Check = check
	v.TrailingWords = c.Parcel.TrailingWords
	if len(c.Parcel.Opcodes) > 0 {
		v.Opcodes = make(map[uint32]struct{}, len(c.Parcel.Opcodes))
		for _, op := range c.Parcel.Opcodes {
			v.Opcodes[op] = struct{}{}
		}
	}
	return v, nil
}

// BlocklistPaths lists the files the companion serves, in order.
func (c *Config) BlocklistPaths() []string {
	paths := []string{c.Blocklist.Path}
	if c.Blocklist.MirrorPath != "" && c.Blocklist.MirrorPath != c.Blocklist.Path {
		paths = append(paths, c.Blocklist.MirrorPath)
	}
	return paths
}

// SocketMode parses companion.socket_mode as an octal permission.
func (c *Config) SocketMode() (os.FileMode, error) {
	m, err := strconv.ParseUint(c.Companion.SocketMode, 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("invalid companion.socket_mode %q", c.Companion.SocketMode)
	}
	return os.FileMode(m), nil
}

// ReloadDebounce returns the parsed companion.reload_debounce.
func (c *Config) ReloadDebounce() time.Duration {
	d, _ := time.ParseDuration(c.Companion.ReloadDebounce)
	return d
}
