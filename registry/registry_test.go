package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name   string
	schema []ParamSchema
	invoke func(ctx context.Context, params map[string]interface{}) (*ToolResult, error)
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Schema() []ParamSchema   { return f.schema }
func (f *fakeTool) Invoke(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
	return f.invoke(ctx, params)
}

func TestRegistry_GetEnabled_NilForUnknown(t *testing.T) {
	r := New()
	assert.Nil(t, r.GetEnabled("missing"))
}

func TestRegistry_GetEnabled_NilWhenDisabled(t *testing.T) {
	r := New()
	tool := &fakeTool{name: "echo", invoke: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
		return &ToolResult{Success: true, Status: StatusSuccess}, nil
	}}
	r.Register(tool)
	require.True(t, r.SetEnabled("echo", false))
	assert.Nil(t, r.GetEnabled("echo"))
}

func TestExecute_UnknownToolReturnsDeniedResult(t *testing.T) {
	r := New()
	result := r.Execute(context.Background(), "missing", nil)
	assert.False(t, result.Success)
	assert.Equal(t, StatusDenied, result.Status)
	assert.Equal(t, ErrorKind("tool_not_found"), result.ErrorKind)
}

func TestExecute_MissingRequiredParamReturnsDeniedResult(t *testing.T) {
	r := New()
	tool := &fakeTool{
		name:   "read_file",
		schema: []ParamSchema{{Name: "path", Type: "string", Required: true}},
		invoke: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
			return &ToolResult{Success: true, Status: StatusSuccess}, nil
		},
	}
	r.Register(tool)
	result := r.Execute(context.Background(), "read_file", map[string]interface{}{})
	assert.False(t, result.Success)
	assert.Equal(t, StatusDenied, result.Status)
}

func TestExecute_ToolErrorConvertedToResultNotPropagated(t *testing.T) {
	r := New()
	tool := &fakeTool{name: "boom", invoke: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
		return nil, errors.New("implementation bug")
	}}
	r.Register(tool)
	result := r.Execute(context.Background(), "boom", nil)
	assert.False(t, result.Success)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.ErrorMessage, "implementation bug")
}

func TestExecute_HappyPath(t *testing.T) {
	r := New()
	tool := &fakeTool{name: "list_files", invoke: func(ctx context.Context, params map[string]interface{}) (*ToolResult, error) {
		return &ToolResult{Success: true, Status: StatusSuccess, Output: []string{"a.txt"}}, nil
	}}
	r.Register(tool)
	result := r.Execute(context.Background(), "list_files", map[string]interface{}{"path": "."})
	require.True(t, result.Success)
	assert.Equal(t, []string{"a.txt"}, result.Output)
}

func TestListEnabled_ExcludesDisabled(t *testing.T) {
	r := New()
	r.Register(&fakeTool{name: "a"})
	r.Register(&fakeTool{name: "b"})
	require.True(t, r.SetEnabled("b", false))
	assert.ElementsMatch(t, []string{"a"}, r.ListEnabled())
}
