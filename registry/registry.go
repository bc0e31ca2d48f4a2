// Package registry implements the ToolRegistry: a name-keyed map of tool
// implementations with an enable/disable bit per tool, plus the ToolResult
// and Tool contract every executor invocation goes through. Dependency
// injection and schema declaration follow core/tool.go's BaseTool idiom,
// simplified to a function-shaped contract since this registry's tools are
// plain callables rather than standalone HTTP-serving components.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gomind-labs/orchestrator/xerrors"
)

// ResultStatus is ToolResult's status code.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusTimeout ResultStatus = "timeout"
	StatusDenied  ResultStatus = "denied"
)

// ErrorKind is a narrow string type holding one of xerrors.Kind's values
// (registry/tools populate it with string(xerrors.KindFoo) rather than
// importing xerrors.Kind itself, keeping ToolResult's field independent of
// xerrors.OrchestratorError's richer shape); executor.go converts it back to
// xerrors.Kind via a plain cast, so the two taxonomies must stay lexically
// identical.
type ErrorKind string

// ToolResult is what every tool invocation produces (SPEC_FULL.md §3).
type ToolResult struct {
	Success      bool          `json:"success"`
	Status       ResultStatus  `json:"status"`
	Output       interface{}   `json:"output,omitempty"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	Duration     time.Duration `json:"duration"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
}

// ParamSchema describes one declared parameter, used for pre-invocation
// validation (SPEC_FULL.md §4.4: "invalid parameter sets surface a denied
// ToolResult before any side effect").
type ParamSchema struct {
	Name     string
	Type     string // "string" | "number" | "bool" | "object" | "array"
	Required bool
}

// Tool is the contract a tool implementation must satisfy.
type Tool interface {
	Name() string
	Schema() []ParamSchema
	Invoke(ctx context.Context, params map[string]interface{}) (*ToolResult, error)
}

// entry pairs a Tool with its enable bit.
type entry struct {
	tool    Tool
	enabled bool
}

// Registry maps tool name to implementation.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*entry
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds a tool, enabled by default.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = &entry{tool: t, enabled: true}
}

// SetEnabled toggles a registered tool. Returns false if the name is unknown.
func (r *Registry) SetEnabled(name string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tools[name]
	if !ok {
		return false
	}
	e.enabled = enabled
	return true
}

// GetEnabled returns the tool registered under name, or nil if absent or
// disabled (SPEC_FULL.md §4.4).
func (r *Registry) GetEnabled(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok || !e.enabled {
		return nil
	}
	return e.tool
}

// ListEnabled returns the names of every enabled tool.
func (r *Registry) ListEnabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, e := range r.tools {
		if e.enabled {
			out = append(out, name)
		}
	}
	return out
}

// ValidateParams checks params against a tool's declared schema, returning
// a human-readable error naming the first problem found (missing required
// parameter, or a present one of the wrong type is not checked beyond
// presence — the tool itself is the authority on deep validation).
func ValidateParams(schema []ParamSchema, params map[string]interface{}) error {
	for _, p := range schema {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			return fmt.Errorf("missing required parameter %q", p.Name)
		}
	}
	return nil
}

// Execute looks up name and invokes it with params, pre-validating against
// its declared schema. Returns a denied ToolResult (not an error) for an
// unknown tool or a schema violation, matching the "Tools must not raise
// for user-domain errors" contract in SPEC_FULL.md §6.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (res *ToolResult) {
	t := r.GetEnabled(name)
	if t == nil {
		return &ToolResult{Success: false, Status: StatusDenied, ErrorMessage: fmt.Sprintf("tool %q not found or disabled", name), ErrorKind: ErrorKind(xerrors.KindToolNotFound)}
	}
	if err := ValidateParams(t.Schema(), params); err != nil {
		return &ToolResult{Success: false, Status: StatusDenied, ErrorMessage: err.Error(), ErrorKind: ErrorKind(xerrors.KindStepExecutionError)}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = &ToolResult{Success: false, Status: StatusError, ErrorMessage: fmt.Sprintf("tool %q panicked: %v", name, rec), ErrorKind: ErrorKind(xerrors.KindStepExecutionError), Duration: time.Since(start)}
		}
	}()
	result, err := t.Invoke(ctx, params)
	if err != nil {
		// Tools may raise only for implementation bugs (SPEC_FULL.md §6);
		// the registry is the last-resort boundary that converts a raised
		// error, or (via the deferred recover above) a panic, into a
		// well-formed ToolResult.
		return &ToolResult{Success: false, Status: StatusError, ErrorMessage: err.Error(), ErrorKind: ErrorKind(xerrors.KindStepExecutionError), Duration: time.Since(start)}
	}
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}
