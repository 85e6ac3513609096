package cycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testCycleFileNameConstant      = "cycle.yaml"
	testCycleConfigurationConstant = `workspace: /workspaces/site
steps:
  - operation: pull
  - operation: replace
    with:
      source: /tmp/generated
      target: /workspaces/site/public
  - operation: commit-and-push
    with:
      message: "Publish generated site"
`
)

func writeCycleConfiguration(t *testing.T, content string) string {
	t.Helper()
	configurationPath := filepath.Join(t.TempDir(), testCycleFileNameConstant)
	require.NoError(t, os.WriteFile(configurationPath, []byte(content), 0o644))
	return configurationPath
}

func TestLoadConfigurationParsesWorkspaceAndSteps(t *testing.T) {
	configurationPath := writeCycleConfiguration(t, testCycleConfigurationConstant)

	configuration, loadError := LoadConfiguration(configurationPath)
	require.NoError(t, loadError)

	require.Equal(t, "/workspaces/site", configuration.Workspace)
	require.Len(t, configuration.Steps, 3)
	require.Equal(t, OperationTypePull, configuration.Steps[0].Operation)
	require.Equal(t, OperationTypeReplace, configuration.Steps[1].Operation)
	require.Equal(t, "/tmp/generated", configuration.Steps[1].Options["source"])
	require.Equal(t, OperationTypeCommitAndPush, configuration.Steps[2].Operation)
	require.Equal(t, "Publish generated site", configuration.Steps[2].Options["message"])
}

func TestLoadConfigurationRejectsInvalidDefinitions(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "NoSteps", content: "workspace: /workspaces/site\n"},
		{name: "MissingOperation", content: "steps:\n  - with:\n      source: /tmp/generated\n"},
		{name: "MalformedYAML", content: "steps: [unterminated\n"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configurationPath := writeCycleConfiguration(t, testCase.content)
			_, loadError := LoadConfiguration(configurationPath)
			require.Error(t, loadError)
		})
	}
}

func TestLoadConfigurationRequiresExistingFile(t *testing.T) {
	_, emptyPathError := LoadConfiguration("  ")
	require.Error(t, emptyPathError)

	_, missingFileError := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, missingFileError)
}
