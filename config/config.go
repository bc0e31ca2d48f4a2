// Package config holds the orchestrator's own ambient configuration: plan
// and artifact directories, concurrency and timeout defaults, log
// level/format. This is distinct from the ConfigStore component (see
// package personaconfig), which manages the persona/system YAML documents
// the orchestrator reads at runtime — this package configures the
// orchestrator itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// Config is the orchestrator's own tunable surface.
type Config struct {
	PlanDir             string        `json:"plan_dir" env:"ORCHESTRATOR_PLAN_DIR" default:"./data/plans"`
	ArtifactDir         string        `json:"artifact_dir" env:"ORCHESTRATOR_ARTIFACT_DIR" default:"./data/artifacts"`
	AuditLogDir         string        `json:"audit_log_dir" env:"ORCHESTRATOR_AUDIT_DIR" default:"./data/logs"`
	PermissionsFile     string        `json:"permissions_file" env:"ORCHESTRATOR_PERMISSIONS_FILE" default:"./permissions.yaml"`
	MaxConcurrentSteps  int           `json:"max_concurrent_steps" env:"ORCHESTRATOR_MAX_CONCURRENT_STEPS" default:"4"`
	DefaultTimeout      time.Duration `json:"default_timeout" env:"ORCHESTRATOR_DEFAULT_TIMEOUT_SECONDS" default:"30s"`
	SchedulerTick       time.Duration `json:"scheduler_tick" env:"ORCHESTRATOR_TICK_MS" default:"100ms"`
	AuditRingSize       int           `json:"audit_ring_size" env:"ORCHESTRATOR_AUDIT_RING_SIZE" default:"1000"`
	CompressionBytes    int           `json:"compression_bytes" env:"ORCHESTRATOR_COMPRESSION_BYTES" default:"10240"`
	DefaultPermission   string        `json:"default_permission" env:"ORCHESTRATOR_DEFAULT_PERMISSION" default:"read"`
	LogLevel            string        `json:"log_level" env:"ORCHESTRATOR_LOG_LEVEL" default:"info"`
	LogFormat           string        `json:"log_format" env:"ORCHESTRATOR_LOG_FORMAT" default:"json"`
	DebugMode           bool          `json:"debug_mode" env:"ORCHESTRATOR_DEBUG_MODE" default:"false"`
	AutoApproveLowRisk  bool          `json:"auto_approve_low_risk" env:"ORCHESTRATOR_AUTO_APPROVE_LOW_RISK" default:"true"`

	logger logging.Logger
}

// Option configures a Config during construction. Mirrors core/config.go's
// functional-options pattern: apply in order, after env, before validation.
type Option func(*Config) error

func WithPlanDir(dir string) Option {
	return func(c *Config) error { c.PlanDir = dir; return nil }
}

func WithArtifactDir(dir string) Option {
	return func(c *Config) error { c.ArtifactDir = dir; return nil }
}

func WithAuditLogDir(dir string) Option {
	return func(c *Config) error { c.AuditLogDir = dir; return nil }
}

func WithPermissionsFile(path string) Option {
	return func(c *Config) error { c.PermissionsFile = path; return nil }
}

func WithMaxConcurrentSteps(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("max concurrent steps must be >= 1, got %d", n)
		}
		c.MaxConcurrentSteps = n
		return nil
	}
}

func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Config) error { c.DefaultTimeout = d; return nil }
}

func WithSchedulerTick(d time.Duration) Option {
	return func(c *Config) error { c.SchedulerTick = d; return nil }
}

func WithLogLevel(level string) Option {
	return func(c *Config) error { c.LogLevel = level; return nil }
}

func WithLogFormat(format string) Option {
	return func(c *Config) error { c.LogFormat = format; return nil }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Config) error { c.logger = l; return nil }
}

func WithDebugMode(v bool) Option {
	return func(c *Config) error { c.DebugMode = v; return nil }
}

func WithAutoApproveLowRisk(v bool) Option {
	return func(c *Config) error { c.AutoApproveLowRisk = v; return nil }
}

// defaults returns the compiled-in baseline, layer one of three.
func defaults() *Config {
	return &Config{
		PlanDir:            "./data/plans",
		ArtifactDir:        "./data/artifacts",
		AuditLogDir:        "./data/logs",
		PermissionsFile:    "./permissions.yaml",
		MaxConcurrentSteps: 4,
		DefaultTimeout:     30 * time.Second,
		SchedulerTick:      100 * time.Millisecond,
		AuditRingSize:      1000,
		CompressionBytes:   10 * 1024,
		DefaultPermission:  "read",
		LogLevel:           "info",
		LogFormat:          "json",
		DebugMode:          false,
		AutoApproveLowRisk: true,
	}
}

// loadFromEnv overlays environment variables, layer two of three.
func loadFromEnv(c *Config) {
	if v := os.Getenv("ORCHESTRATOR_PLAN_DIR"); v != "" {
		c.PlanDir = v
	}
	if v := os.Getenv("ORCHESTRATOR_ARTIFACT_DIR"); v != "" {
		c.ArtifactDir = v
	}
	if v := os.Getenv("ORCHESTRATOR_AUDIT_DIR"); v != "" {
		c.AuditLogDir = v
	}
	if v := os.Getenv("ORCHESTRATOR_PERMISSIONS_FILE"); v != "" {
		c.PermissionsFile = v
	}
	if v := os.Getenv("ORCHESTRATOR_MAX_CONCURRENT_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentSteps = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_DEFAULT_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.DefaultTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("ORCHESTRATOR_TICK_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.SchedulerTick = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("ORCHESTRATOR_AUDIT_RING_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.AuditRingSize = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_COMPRESSION_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CompressionBytes = n
		}
	}
	if v := os.Getenv("ORCHESTRATOR_DEFAULT_PERMISSION"); v != "" {
		c.DefaultPermission = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ORCHESTRATOR_DEBUG_MODE"); v != "" {
		c.DebugMode = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("ORCHESTRATOR_AUTO_APPROVE_LOW_RISK"); v != "" {
		c.AutoApproveLowRisk = strings.EqualFold(v, "true") || v == "1"
	}
}

var validPermissionLevels = map[string]bool{
	"none": true, "read": true, "write": true, "execute": true, "admin": true,
}

// Validate checks invariants a bad config would otherwise violate silently.
// Returns an *xerrors.OrchestratorError with KindConfigValidationError.
func (c *Config) Validate() error {
	if c.MaxConcurrentSteps < 1 {
		return xerrors.New("config.Validate", xerrors.KindConfigValidationError, "", "max_concurrent_steps must be >= 1")
	}
	if c.DefaultTimeout <= 0 {
		return xerrors.New("config.Validate", xerrors.KindConfigValidationError, "", "default_timeout must be positive")
	}
	if c.PlanDir == "" {
		return xerrors.New("config.Validate", xerrors.KindConfigValidationError, "", "plan_dir is required")
	}
	if c.ArtifactDir == "" {
		return xerrors.New("config.Validate", xerrors.KindConfigValidationError, "", "artifact_dir is required")
	}
	if !validPermissionLevels[c.DefaultPermission] {
		return xerrors.New("config.Validate", xerrors.KindConfigValidationError, "", "default_permission must be one of none|read|write|execute|admin")
	}
	return nil
}

// New builds a Config: defaults, then environment, then options, then
// validation — the same three-layer precedence as core/config.go's
// NewConfig. The last layer to touch a field wins.
func New(opts ...Option) (*Config, error) {
	c := defaults()
	loadFromEnv(c)

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, xerrors.Wrap("config.New", xerrors.KindConfigValidationError, "", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.logger == nil {
		c.logger = logging.NoOpLogger{}
	}
	return c, nil
}

// Logger returns the logger attached to this config, or a no-op if none
// was supplied.
func (c *Config) Logger() logging.Logger {
	if c.logger == nil {
		return logging.NoOpLogger{}
	}
	return c.logger
}
