package gitsync

import (
	"errors"
	"strings"

	"github.com/temirov/cisync/internal/execshell"
)

// CommandOutcome classifies the result of a git invocation so orchestration
// decisions branch on an explicit type rather than raw exit codes.
type CommandOutcome int

const (
	// OutcomeSuccess indicates the git command completed cleanly.
	OutcomeSuccess CommandOutcome = iota
	// OutcomeConflict indicates a rebase or merge conflict.
	OutcomeConflict
	// OutcomeRejected indicates the remote refused a push.
	OutcomeRejected
	// OutcomeOtherError covers every remaining failure mode.
	OutcomeOtherError
)

var conflictOutputMarkers = []string{
	"CONFLICT",
	"could not apply",
	"needs merge",
	"resolve all conflicts",
}

var rejectionOutputMarkers = []string{
	"[rejected]",
	"[remote rejected]",
	"failed to push some refs",
	"fetch first",
	"non-fast-forward",
}

// ClassifyGitError maps an execshell failure to a CommandOutcome.
func ClassifyGitError(executionError error) CommandOutcome {
	if executionError == nil {
		return OutcomeSuccess
	}

	var failedError execshell.CommandFailedError
	if !errors.As(executionError, &failedError) {
		return OutcomeOtherError
	}

	combinedOutput := failedError.Result.StandardOutput + "\n" + failedError.Result.StandardError
	for _, conflictMarker := range conflictOutputMarkers {
		if strings.Contains(combinedOutput, conflictMarker) {
			return OutcomeConflict
		}
	}
	for _, rejectionMarker := range rejectionOutputMarkers {
		if strings.Contains(combinedOutput, rejectionMarker) {
			return OutcomeRejected
		}
	}

	return OutcomeOtherError
}
