package execshell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildStartedMessageForKnownGitSubcommandUsesDescription(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"pull", "--rebase", "origin", "master"},
			WorkingDirectory: "/workspace/repo",
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Pulling from remote (in /workspace/repo)", message)
}

func TestBuildStartedMessageForUnknownCommandFallsBackToLabel(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandCurl,
		Details: CommandDetails{
			Arguments: []string{"--silent", "https://example.test"},
		},
	}

	message := formatter.BuildStartedMessage(command)

	require.Equal(t, "Running curl --silent https://example.test (in current directory)", message)
}

func TestBuildFailureMessageIncludesExitCodeAndStandardError(t *testing.T) {
	formatter := CommandMessageFormatter{}
	command := ShellCommand{
		Name: CommandGit,
		Details: CommandDetails{
			Arguments:        []string{"push", "origin", "master"},
			WorkingDirectory: "/workspace/repo",
		},
	}
	result := ExecutionResult{ExitCode: 1, StandardError: "rejected"}

	message := formatter.BuildFailureMessage(command, result)

	require.Equal(t, "git push origin master (in /workspace/repo) failed with exit code 1: rejected", message)
}
