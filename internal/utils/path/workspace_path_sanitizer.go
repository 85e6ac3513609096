package pathutils

import (
	"errors"
	"path/filepath"
	"strings"
)

const workspacePathRequiredMessageConstant = "workspace path must be provided"

// ErrWorkspacePathRequired indicates an empty workspace path was supplied.
var ErrWorkspacePathRequired = errors.New(workspacePathRequiredMessageConstant)

// WorkspacePathSanitizer normalizes workspace path inputs consistently across commands.
type WorkspacePathSanitizer struct {
	homeExpander *HomeExpander
}

// NewWorkspacePathSanitizer constructs a WorkspacePathSanitizer with default behavior.
func NewWorkspacePathSanitizer() *WorkspacePathSanitizer {
	return NewWorkspacePathSanitizerWithExpander(nil)
}

// NewWorkspacePathSanitizerWithExpander constructs a WorkspacePathSanitizer using the provided expander.
func NewWorkspacePathSanitizerWithExpander(homeExpander *HomeExpander) *WorkspacePathSanitizer {
	resolvedExpander := homeExpander
	if resolvedExpander == nil {
		resolvedExpander = NewHomeExpander()
	}
	return &WorkspacePathSanitizer{homeExpander: resolvedExpander}
}

// Sanitize trims whitespace, expands the user's home directory, and resolves an absolute path.
func (sanitizer *WorkspacePathSanitizer) Sanitize(candidatePath string) (string, error) {
	trimmedCandidate := strings.TrimSpace(candidatePath)
	if len(trimmedCandidate) == 0 {
		return "", ErrWorkspacePathRequired
	}

	expandedPath := sanitizer.homeExpander.Expand(trimmedCandidate)

	absolutePath, absoluteError := filepath.Abs(expandedPath)
	if absoluteError != nil {
		return "", absoluteError
	}

	return filepath.Clean(absolutePath), nil
}
