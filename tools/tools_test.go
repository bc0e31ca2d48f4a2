package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles_Invoke(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	result, err := ListFiles{}.Invoke(context.Background(), map[string]interface{}{"path": dir})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, []string{"a.txt"}, result.Output)
}

func TestListFiles_MissingDirReturnsErrorResultNotGoError(t *testing.T) {
	result, err := ListFiles{}.Invoke(context.Background(), map[string]interface{}{"path": "/no/such/dir"})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestReadFile_Invoke(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	result, err := ReadFile{}.Invoke(context.Background(), map[string]interface{}{"path": path})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "hello", result.Output)
}

func TestBashExecute_Invoke(t *testing.T) {
	result, err := BashExecute{}.Invoke(context.Background(), map[string]interface{}{"command": "echo hi"})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Contains(t, result.Output, "hi")
}

func TestBashExecute_NonZeroExitReturnsErrorResult(t *testing.T) {
	result, err := BashExecute{}.Invoke(context.Background(), map[string]interface{}{"command": "exit 1"})
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestResourceFor(t *testing.T) {
	assert.Equal(t, "rm -rf /etc", ResourceFor("bash_execute", map[string]interface{}{"command": "rm -rf /etc"}))
	assert.Equal(t, "/tmp/a.txt", ResourceFor("read_file", map[string]interface{}{"path": "/tmp/a.txt"}))
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, "read", ActionFor("read_file"))
	assert.Equal(t, "execute", ActionFor("bash_execute"))
	assert.Equal(t, "write", ActionFor("unregistered_tool"))
}
