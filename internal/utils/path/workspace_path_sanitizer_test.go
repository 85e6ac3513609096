package pathutils_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/cisync/internal/utils/path"
)

const (
	testHomeDirectoryConstant         = "/home/builder"
	testTildeWorkspacePathConstant    = "~/workspaces/site"
	testExpandedWorkspacePathConstant = "/home/builder/workspaces/site"
	testWhitespacePathConstant        = "   "
	testRelativeSegmentPathConstant   = "/workspaces/site/../site"
	testCleanedWorkspacePathConstant  = "/workspaces/site"
)

func staticHomeDirectoryProvider() (string, error) {
	return testHomeDirectoryConstant, nil
}

func TestWorkspacePathSanitizerExpandsHomeDirectory(t *testing.T) {
	sanitizer := pathutils.NewWorkspacePathSanitizerWithExpander(pathutils.NewHomeExpanderWithProvider(staticHomeDirectoryProvider))

	sanitizedPath, sanitizeError := sanitizer.Sanitize(testTildeWorkspacePathConstant)

	require.NoError(t, sanitizeError)
	require.Equal(t, filepath.Clean(testExpandedWorkspacePathConstant), sanitizedPath)
}

func TestWorkspacePathSanitizerRejectsEmptyInput(t *testing.T) {
	sanitizer := pathutils.NewWorkspacePathSanitizer()

	_, sanitizeError := sanitizer.Sanitize(testWhitespacePathConstant)

	require.ErrorIs(t, sanitizeError, pathutils.ErrWorkspacePathRequired)
}

func TestWorkspacePathSanitizerCleansRelativeSegments(t *testing.T) {
	sanitizer := pathutils.NewWorkspacePathSanitizer()

	sanitizedPath, sanitizeError := sanitizer.Sanitize(testRelativeSegmentPathConstant)

	require.NoError(t, sanitizeError)
	require.Equal(t, testCleanedWorkspacePathConstant, sanitizedPath)
}
