package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorError_ErrorFormatsVaryByFields(t *testing.T) {
	cases := []struct {
		name string
		err  *OrchestratorError
		want string
	}{
		{"all fields", New("scheduler.dispatch", KindStepTimeout, "step-1", "exceeded 1s"), "scheduler.dispatch: step_timeout [step-1]: exceeded 1s"},
		{"no id", New("store.save", KindStorageError, "", "disk full"), "store.save: storage_error: disk full"},
		{"no message", New("registry.execute", KindToolNotFound, "tool-x", ""), "registry.execute: tool_not_found [tool-x]"},
		{"bare", New("plan.load", KindPlanNotFound, "", ""), "plan.load: plan_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestOrchestratorError_UnwrapsToSentinel(t *testing.T) {
	err := New("executor.run", KindPermissionDenied, "step-2", "blocked")
	require.True(t, errors.Is(err, ErrPermissionDenied))
	require.True(t, IsPermissionDenied(err))
}

func TestWrap_PreservesUnderlyingError(t *testing.T) {
	underlying := errors.New("connection reset")
	wrapped := Wrap("artifact.store", KindStorageError, "run-1", underlying)
	require.True(t, errors.Is(wrapped, underlying))
	require.True(t, IsStorageError(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New("x", KindStepTimeout, "", "")))
	assert.True(t, IsRetryable(New("x", KindToolTransient, "", "")))
	assert.False(t, IsRetryable(New("x", KindStepExecutionError, "", "")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New("x", KindPlanNotFound, "", "")))
	assert.True(t, IsNotFound(New("x", KindToolNotFound, "", "")))
	assert.False(t, IsNotFound(New("x", KindStepTimeout, "", "")))
}
