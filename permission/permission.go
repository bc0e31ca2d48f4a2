// Package permission implements the PermissionEngine: a priority-ordered
// list of declarative rules evaluated against (tool, resource, action)
// triples. The evaluation shape — filter candidates, sort by priority,
// take the head, fall back to a configured default — mirrors
// orchestration/hitl_policy.go's RuleBasedPolicy, generalized from a fixed
// sensitive-agent/capability check to an open rule table.
package permission

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gomind-labs/orchestrator/audit"
	"github.com/gomind-labs/orchestrator/logging"
	"github.com/gomind-labs/orchestrator/telemetry"
)

// ResourceType classifies what a rule's pattern matches against.
type ResourceType string

const (
	ResourceFile      ResourceType = "file"
	ResourceDirectory ResourceType = "directory"
	ResourceCommand   ResourceType = "command"
	ResourceNetwork   ResourceType = "network"
	ResourceSystem    ResourceType = "system"
)

// Level is a point on the none < read < write < execute < admin hierarchy.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelExecute
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelNone: "none", LevelRead: "read", LevelWrite: "write",
	LevelExecute: "execute", LevelAdmin: "admin",
}

var levelsByName = map[string]Level{
	"none": LevelNone, "read": LevelRead, "write": LevelWrite,
	"execute": LevelExecute, "admin": LevelAdmin,
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel resolves a level name, defaulting to LevelRead for unknown input.
func ParseLevel(name string) Level {
	if l, ok := levelsByName[name]; ok {
		return l
	}
	return LevelRead
}

// requiredLevel maps an action to the minimum level a rule must grant,
// per the action→required-level table in SPEC_FULL.md §4.2.
func requiredLevel(action string) Level {
	switch action {
	case "read":
		return LevelRead
	case "write", "create", "modify", "delete":
		return LevelWrite
	case "execute":
		return LevelExecute
	case "admin":
		return LevelAdmin
	default:
		return LevelRead
	}
}

// Rule is one declarative permission record.
type Rule struct {
	ID              string         `yaml:"id" json:"id"`
	Name            string         `yaml:"name" json:"name"`
	Description     string         `yaml:"description" json:"description"`
	ResourceType    ResourceType   `yaml:"resource_type" json:"resource_type"`
	ResourcePattern string         `yaml:"resource_pattern" json:"resource_pattern"`
	ToolNames       []string       `yaml:"tool_names" json:"tool_names"`
	PermissionLevel string         `yaml:"permission_level" json:"permission_level"`
	Conditions      map[string]any `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Priority        int            `yaml:"priority" json:"priority"`
	Enabled         bool           `yaml:"enabled" json:"enabled"`

	compiled *regexp.Regexp
	order    int // insertion order, for stable tie-breaking
}

func (r *Rule) appliesTo(toolName string) bool {
	for _, t := range r.ToolNames {
		if t == "*" || t == toolName {
			return true
		}
	}
	return false
}

// ruleFile is the top-level shape of permissions.yaml (SPEC_FULL.md §6).
type ruleFile struct {
	DefaultPermission string `yaml:"default_permission"`
	PermissionRules   []Rule `yaml:"permission_rules"`
}

// Engine holds the ordered rule set and evaluates checks against it.
type Engine struct {
	mu                sync.RWMutex
	rules             []*Rule
	defaultPermission Level
	nextOrder         int

	auditLog *audit.Log
	logger   logging.Logger
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithAuditLog(l *audit.Log) Option { return func(e *Engine) { e.auditLog = l } }
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}
func WithDefaultPermission(level Level) Option {
	return func(e *Engine) { e.defaultPermission = level }
}

// New builds an Engine seeded with the built-in default rules (system
// directory protection, .git protection, config file protection, and a
// workspace-write catch-all at a weak/high priority number). Rules added
// later through LoadYAML or AddRule are ranked with these by Priority
// alone: a rule's source does not change its precedence, and on equal
// Priority the earlier-inserted rule (a built-in default first) wins.
func New(opts ...Option) *Engine {
	e := &Engine{defaultPermission: LevelRead, logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	for _, r := range builtinDefaults() {
		e.addRuleLocked(r)
	}
	return e
}

func builtinDefaults() []*Rule {
	return []*Rule{
		{
			ID: "default-system-protect", Name: "Protect system directories",
			Description: "Deny writes under /etc, /bin, /usr, /sys, /boot",
			ResourceType: ResourceDirectory, ResourcePattern: `^(/etc|/bin|/usr|/sys|/boot)(/|$)`,
			ToolNames: []string{"*"}, PermissionLevel: "read", Priority: 10, Enabled: true,
		},
		{
			ID: "default-git-protect", Name: "Protect .git trees",
			Description: "Deny writes inside .git directories",
			ResourceType: ResourceDirectory, ResourcePattern: `(^|/)\.git(/|$)`,
			ToolNames: []string{"*"}, PermissionLevel: "read", Priority: 20, Enabled: true,
		},
		{
			ID: "default-config-protect", Name: "Protect configuration files",
			Description: "Deny writes to *.yaml/*.yml/*.env config patterns",
			ResourceType: ResourceFile, ResourcePattern: `\.(ya?ml|env)$`,
			ToolNames: []string{"*"}, PermissionLevel: "read", Priority: 30, Enabled: true,
		},
		{
			ID: "default-workspace-catchall", Name: "Workspace write catch-all",
			Description: "Grant write access to everything else in the workspace",
			ResourceType: ResourceDirectory, ResourcePattern: `.*`,
			ToolNames: []string{"*"}, PermissionLevel: "write", Priority: 1000, Enabled: true,
		},
	}
}

// AddRule appends a rule, compiling its resource pattern. Its precedence
// comes from its Priority; on a tie, rules inserted before it win. Returns
// an error if the pattern fails to compile.
func (e *Engine) AddRule(r *Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addRuleLocked(r)
}

func (e *Engine) addRuleLocked(r *Rule) error {
	compiled, err := regexp.Compile(r.ResourcePattern)
	if err != nil {
		return fmt.Errorf("permission: compile pattern %q for rule %q: %w", r.ResourcePattern, r.ID, err)
	}
	r.compiled = compiled
	r.order = e.nextOrder
	e.nextOrder++
	e.rules = append(e.rules, r)
	return nil
}

// LoadYAML loads rules from a permissions.yaml document (SPEC_FULL.md §6),
// appending to the existing rule set at its declared priorities.
func (e *Engine) LoadYAML(data []byte) error {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("permission: parse yaml: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rf.DefaultPermission != "" {
		e.defaultPermission = ParseLevel(rf.DefaultPermission)
	}
	for i := range rf.PermissionRules {
		r := rf.PermissionRules[i]
		if err := e.addRuleLocked(&r); err != nil {
			return err
		}
	}
	return nil
}

// Decision is the outcome of a Check call, with enough context for callers
// (and audit records) to explain why.
type Decision struct {
	Allowed   bool
	MatchedID string
	Required  Level
	Granted   Level
}

// Check evaluates (toolName, resource, action) per SPEC_FULL.md §4.2 and
// logs a permission_check event (and, on denial, a permission_denied event)
// through the attached AuditLog. The engine never returns an error; denial
// is communicated solely via Decision.Allowed.
func (e *Engine) Check(toolName, resource, action, actor, runID, planID string) Decision {
	defer telemetry.TimeOperation("permission.check.duration_ms", "tool", toolName)()

	e.mu.RLock()
	var matches []*Rule
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if !r.appliesTo(toolName) {
			continue
		}
		if r.compiled == nil || !r.compiled.MatchString(resource) {
			continue
		}
		matches = append(matches, r)
	}
	defaultPermission := e.defaultPermission
	e.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority < matches[j].Priority
		}
		return matches[i].order < matches[j].order
	})

	required := requiredLevel(action)
	var decision Decision
	decision.Required = required

	if len(matches) > 0 {
		head := matches[0]
		granted := ParseLevel(head.PermissionLevel)
		decision.Granted = granted
		decision.MatchedID = head.ID
		decision.Allowed = granted >= required
	} else {
		decision.Granted = defaultPermission
		decision.Allowed = defaultPermission >= required
	}

	result := "allowed"
	if !decision.Allowed {
		result = "denied"
	}

	if e.auditLog != nil {
		e.auditLog.LogPermissionCheck(actor, resource, action, result, decision.Allowed, runID, planID, toolName)
		if !decision.Allowed {
			reason := fmt.Sprintf("required %s, granted %s (rule=%s)", decision.Required, decision.Granted, decision.MatchedID)
			e.auditLog.LogPermissionDenied(actor, resource, action, reason, runID, planID, toolName)
		}
	}

	telemetry.Counter("permission.checks", "tool", toolName, "result", result)
	return decision
}

// Rules returns a defensive copy of the current rule set, ordered as
// evaluated (priority ascending, then insertion order), for CLI inspection
// (`permissions list`).
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	sorted := make([]*Rule, len(e.rules))
	copy(sorted, e.rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].order < sorted[j].order
	})
	for i, r := range sorted {
		out[i] = *r
	}
	return out
}

// SetEnabled toggles a rule by id, used by `permissions enable|disable`.
func (e *Engine) SetEnabled(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.ID == id {
			r.Enabled = enabled
			return true
		}
	}
	return false
}
