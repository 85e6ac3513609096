package cycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildOperationsCreatesTypedOperations(t *testing.T) {
	configuration := Configuration{
		Workspace: "/workspaces/site",
		Steps: []StepConfiguration{
			{Operation: OperationTypePull},
			{Operation: OperationTypeReplace, Options: map[string]any{"source": "/tmp/generated", "target": "/workspaces/site/public"}},
			{Operation: OperationTypeCommitAndPush, Options: map[string]any{"message": "Publish", "commit_args": []string{"--no-verify"}}},
			{Operation: OperationTypeSandbox, Options: map[string]any{"root": "/workspaces/tool-env", "interpreter": "python3"}},
		},
	}

	operations, buildError := BuildOperations(configuration)
	require.NoError(t, buildError)
	require.Len(t, operations, 4)

	pullOperation, isPull := operations[0].(*PullOperation)
	require.True(t, isPull)
	require.Equal(t, "/workspaces/site", pullOperation.WorkspacePath)

	replaceOperation, isReplace := operations[1].(*ReplaceOperation)
	require.True(t, isReplace)
	require.Equal(t, "/tmp/generated", replaceOperation.SourcePath)
	require.Equal(t, "/workspaces/site/public", replaceOperation.TargetPath)

	commitOperation, isCommit := operations[2].(*CommitOperation)
	require.True(t, isCommit)
	require.Equal(t, "/workspaces/site", commitOperation.WorkspacePath)
	require.Equal(t, "Publish", commitOperation.CommitMessage)
	require.Equal(t, []string{"--no-verify"}, commitOperation.ExtraCommitArguments)

	sandboxOperation, isSandbox := operations[3].(*SandboxOperation)
	require.True(t, isSandbox)
	require.Equal(t, "/workspaces/tool-env", sandboxOperation.Options.Root)
	require.Equal(t, "python3", sandboxOperation.Options.InterpreterPath)
}

func TestBuildOperationsStepWorkspaceOverridesDefault(t *testing.T) {
	configuration := Configuration{
		Workspace: "/workspaces/site",
		Steps: []StepConfiguration{
			{Operation: OperationTypePull, Options: map[string]any{"workspace": "/workspaces/docs"}},
		},
	}

	operations, buildError := BuildOperations(configuration)
	require.NoError(t, buildError)

	pullOperation, isPull := operations[0].(*PullOperation)
	require.True(t, isPull)
	require.Equal(t, "/workspaces/docs", pullOperation.WorkspacePath)
}

func TestBuildOperationsRejectsInvalidSteps(t *testing.T) {
	testCases := []struct {
		name          string
		configuration Configuration
	}{
		{
			name:          "UnsupportedOperation",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationType("deploy")}}},
		},
		{
			name:          "PullWithoutWorkspace",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationTypePull}}},
		},
		{
			name:          "ReplaceWithoutTarget",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationTypeReplace, Options: map[string]any{"source": "/tmp/generated"}}}},
		},
		{
			name:          "ReplaceWithoutSource",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationTypeReplace, Options: map[string]any{"target": "/workspaces/site"}}}},
		},
		{
			name:          "SandboxWithoutRoot",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationTypeSandbox}}},
		},
		{
			name:          "CommitWithoutWorkspace",
			configuration: Configuration{Steps: []StepConfiguration{{Operation: OperationTypeCommitAndPush}}},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			operations, buildError := BuildOperations(testCase.configuration)
			require.Error(t, buildError)
			require.Nil(t, operations)
		})
	}
}
