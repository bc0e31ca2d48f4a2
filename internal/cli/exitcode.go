package cli

import (
	"errors"

	"github.com/gomind-labs/orchestrator/xerrors"
)

// Exit codes per SPEC_FULL.md §6: 0 success, 1 user error (bad input,
// not-found, permission/validation failures the caller can fix), 2 system
// error (storage, transient, or otherwise unexpected failures).
const (
	ExitSuccess   = 0
	ExitUserError = 1
	ExitSystem    = 2
)

// classify maps an error returned by a manager/scheduler/store call to an
// exit code, the same way runPlanDeploy-style Cobra RunE functions in the
// pack return a single error and let main() decide the process outcome —
// generalized here because this module's errors are already classified by
// xerrors.Kind instead of being re-inspected ad hoc per call site.
// ExitCode is classify exported for main()'s os.Exit call.
func ExitCode(err error) int { return classify(err) }

func classify(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch {
	case xerrors.IsNotFound(err),
		xerrors.IsPermissionDenied(err),
		xerrors.IsConfigValidationError(err),
		errors.Is(err, xerrors.ErrPlanNotExecutable):
		return ExitUserError
	default:
		return ExitSystem
	}
}
