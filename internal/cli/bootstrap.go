// Package cli wires the Cobra command tree to the orchestrator's
// components. Structure follows the teacher pack's own CLI layering
// convention (internal/cli/root.go plus one file per command group): a
// bootstrap step builds the shared components once, and each command
// closes over them.
package cli

import (
	"fmt"
	"os"

	"github.com/gomind-labs/orchestrator/artifact"
	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/config"
	"github.com/gomind-labs/orchestrator/executor"
	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/manager"
	"github.com/gomind-labs/orchestrator/permission"
	"github.com/gomind-labs/orchestrator/personaconfig"
	"github.com/gomind-labs/orchestrator/planstore"
	"github.com/gomind-labs/orchestrator/registry"
	"github.com/gomind-labs/orchestrator/scheduler"
	"github.com/gomind-labs/orchestrator/tools"
)

// components bundles everything a command needs, built once per process
// invocation from the resolved config.
type components struct {
	cfg       *config.Config
	logger    logging.Logger
	auditLog  *audit.Log
	permEng   *permission.Engine
	store     *planstore.Store
	manager   *manager.Manager
	persona   *personaconfig.Store
}

// newComponents loads config (defaults, then environment; no option
// overrides are passed) and constructs every component the CLI drives, in
// the same dependency order main() would use in a long-running service:
// audit log, permission engine, registry, artifact store, executor, plan
// store, scheduler, manager, and the persona config store when configDir
// exists.
func newComponents(configDir string) (*components, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLevel(cfg.LogLevel)
	logFormat := logging.FormatJSON
	if cfg.LogFormat == "text" {
		logFormat = logging.FormatText
	}
	logger := logging.New(logLevel, logFormat)

	if err := os.MkdirAll(cfg.AuditLogDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	auditLog, err := audit.New(audit.Config{Dir: cfg.AuditLogDir, RingSize: cfg.AuditRingSize, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	permEng := permission.New(
		permission.WithAuditLog(auditLog),
		permission.WithLogger(logger),
		permission.WithDefaultPermission(permission.ParseLevel(cfg.DefaultPermission)),
	)
	if body, err := os.ReadFile(cfg.PermissionsFile); err == nil {
		if err := permEng.LoadYAML(body); err != nil {
			return nil, fmt.Errorf("loading %s: %w", cfg.PermissionsFile, err)
		}
	}

	reg := registry.New()
	tools.RegisterDefaults(reg)

	if err := os.MkdirAll(cfg.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	artifacts, err := artifact.New(cfg.ArtifactDir, cfg.CompressionBytes)
	if err != nil {
		return nil, fmt.Errorf("opening artifact store: %w", err)
	}

	mapper := executor.NewMapper(tools.ResourceFor, tools.ActionFor)
	exec := executor.New(reg, permEng, artifacts, auditLog, mapper, executor.WithLogger(logger))

	if err := os.MkdirAll(cfg.PlanDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating plan dir: %w", err)
	}
	store, err := planstore.New(cfg.PlanDir)
	if err != nil {
		return nil, fmt.Errorf("opening plan store: %w", err)
	}

	sched := scheduler.New(exec, store, auditLog,
		scheduler.WithLogger(logger),
		scheduler.WithTickInterval(cfg.SchedulerTick),
	)

	mgr := manager.New(store, sched, manager.WithLogger(logger))

	var persona *personaconfig.Store
	if configDir != "" {
		if _, err := os.Stat(configDir); err == nil {
			persona, err = personaconfig.New(configDir, logger)
			if err != nil {
				return nil, fmt.Errorf("loading persona config: %w", err)
			}
		}
	}

	return &components{
		cfg: cfg, logger: logger, auditLog: auditLog, permEng: permEng,
		store: store, manager: mgr, persona: persona,
	}, nil
}

func parseLevel(name string) logging.Level {
	switch name {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
