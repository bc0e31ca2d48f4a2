// Package tools provides the three reference tool implementations named in
// SPEC_FULL.md's own worked end-to-end scenarios (§8): list_files,
// read_file, bash_execute. The concrete tool set is explicitly out of
// scope for the orchestrator itself (SPEC_FULL.md §4.4) — these exist only
// so the registry, permission engine, and artifact store have something
// real to exercise end-to-end.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gomind-labs/orchestrator/registry"
	"github.com/gomind-labs/orchestrator/xerrors"
)

// ListFiles lists directory entries under a "path" parameter.
type ListFiles struct{}

func (ListFiles) Name() string { return "list_files" }
func (ListFiles) Schema() []registry.ParamSchema {
	return []registry.ParamSchema{{Name: "path", Type: "string", Required: true}}
}

func (ListFiles) Invoke(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
	start := time.Now()
	path, _ := params["path"].(string)
	entries, err := os.ReadDir(path)
	if err != nil {
		return &registry.ToolResult{
			Success: false, Status: registry.StatusError, ErrorMessage: err.Error(),
			ErrorKind: registry.ErrorKind(xerrors.KindStepExecutionError), Duration: time.Since(start),
		}, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return &registry.ToolResult{Success: true, Status: registry.StatusSuccess, Output: names, Duration: time.Since(start)}, nil
}

// ReadFile reads the contents of a "path" parameter.
type ReadFile struct{}

func (ReadFile) Name() string { return "read_file" }
func (ReadFile) Schema() []registry.ParamSchema {
	return []registry.ParamSchema{{Name: "path", Type: "string", Required: true}}
}

func (ReadFile) Invoke(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
	start := time.Now()
	path, _ := params["path"].(string)
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		return &registry.ToolResult{
			Success: false, Status: registry.StatusError, ErrorMessage: err.Error(),
			ErrorKind: registry.ErrorKind(xerrors.KindStepExecutionError), Duration: time.Since(start),
		}, nil
	}
	return &registry.ToolResult{Success: true, Status: registry.StatusSuccess, Output: string(data), Duration: time.Since(start)}, nil
}

// BashExecute runs a shell "command" parameter and captures stdout/stderr.
// Permission enforcement lives entirely upstream in the permission engine;
// this tool performs no policy checks of its own, matching the spec's
// explicit separation of invocation from authorization (SPEC_FULL.md §4.7).
type BashExecute struct{}

func (BashExecute) Name() string { return "bash_execute" }
func (BashExecute) Schema() []registry.ParamSchema {
	return []registry.ParamSchema{{Name: "command", Type: "string", Required: true}}
}

func (BashExecute) Invoke(ctx context.Context, params map[string]interface{}) (*registry.ToolResult, error) {
	start := time.Now()
	command, _ := params["command"].(string)
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	if ctx.Err() != nil {
		return &registry.ToolResult{
			Success: false, Status: registry.StatusTimeout, ErrorMessage: "command timed out",
			ErrorKind: registry.ErrorKind(xerrors.KindStepTimeout), Duration: duration,
		}, nil
	}
	if err != nil {
		return &registry.ToolResult{
			Success: false, Status: registry.StatusError,
			ErrorMessage: fmt.Sprintf("%v: %s", err, stderr.String()),
			ErrorKind:    registry.ErrorKind(xerrors.KindStepExecutionError), Duration: duration,
		}, nil
	}
	return &registry.ToolResult{Success: true, Status: registry.StatusSuccess, Output: stdout.String(), Duration: duration}, nil
}

// RegisterDefaults registers the three reference tools on r.
func RegisterDefaults(r *registry.Registry) {
	r.Register(ListFiles{})
	r.Register(ReadFile{})
	r.Register(BashExecute{})
}

// ResourceFor derives the logical resource string for the permission
// engine from a tool name and its params (SPEC_FULL.md §4.7 step 2):
// the "command" param for bash_execute, the "path" param for file tools.
func ResourceFor(toolName string, params map[string]interface{}) string {
	switch toolName {
	case "bash_execute":
		if cmd, ok := params["command"].(string); ok {
			return cmd
		}
	case "read_file", "list_files":
		if path, ok := params["path"].(string); ok {
			return path
		}
	}
	return ""
}

// ActionFor maps a tool name to the permission-engine action vocabulary
// (read/write/execute), defaulting conservatively to write for tools it
// doesn't recognize (SPEC_FULL.md §4.7 implementation note).
func ActionFor(toolName string) string {
	switch toolName {
	case "read_file", "list_files":
		return "read"
	case "bash_execute":
		return "execute"
	default:
		return "write"
	}
}
