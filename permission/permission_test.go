package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_SystemDirectoryRuleDeniesWrite(t *testing.T) {
	e := New()
	d := e.Check("bash_execute", "/etc/passwd", "write", "agent", "run-1", "plan-1")
	assert.False(t, d.Allowed)
	assert.Equal(t, "default-system-protect", d.MatchedID)
}

func TestCheck_WorkspaceCatchAllGrantsWrite(t *testing.T) {
	e := New()
	d := e.Check("write_file", "/workspace/notes.txt", "write", "agent", "", "")
	assert.True(t, d.Allowed)
	assert.Equal(t, "default-workspace-catchall", d.MatchedID)
}

func TestCheck_NoMatchFallsBackToDefaultPermission(t *testing.T) {
	e := New(WithDefaultPermission(LevelRead))
	require.True(t, e.SetEnabled("default-workspace-catchall", false)) // the catch-all matches every resource
	d := e.Check("custom_tool", "ftp://unrelated-scheme", "read", "agent", "", "")
	assert.True(t, d.Allowed)
	assert.Empty(t, d.MatchedID)
}

func TestCheck_PriorityOrderingPicksLowestNumber(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule(&Rule{
		ID: "high-priority-allow", ToolNames: []string{"*"}, ResourceType: ResourceDirectory,
		ResourcePattern: `^/etc`, PermissionLevel: "admin", Priority: 1, Enabled: true,
	}))
	d := e.Check("bash_execute", "/etc/passwd", "write", "agent", "", "")
	assert.True(t, d.Allowed)
	assert.Equal(t, "high-priority-allow", d.MatchedID)
}

func TestLoadYAML_AppendsRulesAndDefaultPermission(t *testing.T) {
	e := New()
	yamlDoc := []byte(`
default_permission: write
permission_rules:
  - id: custom-rule
    name: Custom
    description: test rule
    resource_type: file
    resource_pattern: "^/tmp/"
    tool_names: ["read_file"]
    permission_level: admin
    priority: 5
    enabled: true
`)
	require.NoError(t, e.LoadYAML(yamlDoc))
	d := e.Check("read_file", "/tmp/scratch.txt", "admin", "agent", "", "")
	assert.True(t, d.Allowed)
	assert.Equal(t, "custom-rule", d.MatchedID)
}

func TestSetEnabled_DisablesRuleFromMatching(t *testing.T) {
	e := New()
	ok := e.SetEnabled("default-system-protect", false)
	require.True(t, ok)
	d := e.Check("bash_execute", "/etc/passwd", "write", "agent", "", "")
	assert.True(t, d.Allowed) // falls through to workspace catch-all
}

func TestSetEnabled_UnknownIDReturnsFalse(t *testing.T) {
	e := New()
	assert.False(t, e.SetEnabled("no-such-rule", false))
}

func TestAddRule_RejectsInvalidRegex(t *testing.T) {
	e := New()
	err := e.AddRule(&Rule{ID: "bad", ResourcePattern: "(unterminated", ToolNames: []string{"*"}, PermissionLevel: "read"})
	require.Error(t, err)
}
