package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	testRemoteNameConstant          = "origin"
	testBranchNameConstant          = "master"
	testWorkspacePathConstant       = "/workspaces/site"
	testConflictOutputConstant      = "CONFLICT (content): merge conflict in build.txt"
	testRejectionOutputConstant     = "! [rejected] master -> master (fetch first)"
	testDirtyStatusOutputConstant   = " M generated/index.html\n?? generated/new.html\n"
	testNothingToCommitConstant     = "nothing to commit, working tree clean"
	testCommitMessageFlagConstant   = "-m"
	testCommitMessageValueConstant  = "test"
	testSubrepositoryNameConstant   = "sub"
	testMetadataDirectoryConstant   = ".git"
	testMetadataPointerFileConstant = "gitdir: ../.git/modules/sub"
)

type stubResponse struct {
	result         execshell.ExecutionResult
	executionError error
}

type stubGitExecutor struct {
	responsesBySubcommand map[string][]stubResponse
	recordedCommands      []execshell.CommandDetails
}

func newStubGitExecutor() *stubGitExecutor {
	return &stubGitExecutor{responsesBySubcommand: map[string][]stubResponse{}}
}

func (executor *stubGitExecutor) scriptResponse(subcommand string, response stubResponse) {
	executor.responsesBySubcommand[subcommand] = append(executor.responsesBySubcommand[subcommand], response)
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, details)
	if len(details.Arguments) == 0 {
		return execshell.ExecutionResult{}, nil
	}
	pendingResponses := executor.responsesBySubcommand[details.Arguments[0]]
	if len(pendingResponses) == 0 {
		return execshell.ExecutionResult{}, nil
	}
	nextResponse := pendingResponses[0]
	executor.responsesBySubcommand[details.Arguments[0]] = pendingResponses[1:]
	return nextResponse.result, nextResponse.executionError
}

func (executor *stubGitExecutor) recordedArguments() [][]string {
	argumentSequences := make([][]string, 0, len(executor.recordedCommands))
	for _, recordedCommand := range executor.recordedCommands {
		argumentSequences = append(argumentSequences, recordedCommand.Arguments)
	}
	return argumentSequences
}

func failedGitCommand(arguments []string, standardOutput string, standardError string) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{Arguments: arguments}},
		Result:  execshell.ExecutionResult{StandardOutput: standardOutput, StandardError: standardError, ExitCode: 1},
	}
}

func newTestService(t *testing.T, executor GitExecutor) *Service {
	t.Helper()
	service, creationError := NewService(
		Dependencies{GitExecutor: executor},
		Options{RemoteName: testRemoteNameConstant, BranchName: testBranchNameConstant},
	)
	require.NoError(t, creationError)
	return service
}

func createRootWorkspace(t *testing.T) Workspace {
	t.Helper()
	workspacePath := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(workspacePath, testMetadataDirectoryConstant), 0o755))
	workspace, openError := OpenWorkspace(workspacePath)
	require.NoError(t, openError)
	return workspace
}

func createSubrepositoryWorkspace(t *testing.T) (Workspace, string) {
	t.Helper()
	parentPath := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(parentPath, testMetadataDirectoryConstant), 0o755))
	subrepositoryPath := filepath.Join(parentPath, testSubrepositoryNameConstant)
	require.NoError(t, os.Mkdir(subrepositoryPath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subrepositoryPath, testMetadataDirectoryConstant), []byte(testMetadataPointerFileConstant), 0o644))
	workspace, openError := OpenWorkspace(subrepositoryPath)
	require.NoError(t, openError)
	return workspace, parentPath
}

func TestNewServiceValidatesDependenciesAndOptions(t *testing.T) {
	testCases := []struct {
		name         string
		dependencies Dependencies
		options      Options
		expectedErr  error
	}{
		{
			name:         "MissingGitExecutor",
			dependencies: Dependencies{},
			options:      Options{RemoteName: testRemoteNameConstant, BranchName: testBranchNameConstant},
			expectedErr:  ErrGitExecutorNotConfigured,
		},
		{
			name:         "MissingRemoteName",
			dependencies: Dependencies{GitExecutor: newStubGitExecutor()},
			options:      Options{BranchName: testBranchNameConstant},
			expectedErr:  ErrRemoteNameRequired,
		},
		{
			name:         "MissingBranchName",
			dependencies: Dependencies{GitExecutor: newStubGitExecutor()},
			options:      Options{RemoteName: testRemoteNameConstant},
			expectedErr:  ErrBranchNameRequired,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			service, creationError := NewService(testCase.dependencies, testCase.options)
			require.ErrorIs(t, creationError, testCase.expectedErr)
			require.Nil(t, service)
		})
	}
}

func TestPullExecutesResetCheckoutResetRebaseSequence(t *testing.T) {
	executor := newStubGitExecutor()
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	pullError := service.Pull(context.Background(), workspace)

	require.NoError(t, pullError)
	require.Equal(t, [][]string{
		{gitResetSubcommandConstant, gitHardResetFlagConstant},
		{gitCheckoutSubcommandConstant, gitForceCheckoutFlagConstant, testBranchNameConstant},
		{gitResetSubcommandConstant, gitHardResetFlagConstant},
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitSubmoduleSubcommandConstant, gitSubmoduleUpdateActionConstant, gitSubmoduleInitFlagConstant, gitSubmoduleRecursiveFlagConstant},
	}, executor.recordedArguments())

	for _, recordedCommand := range executor.recordedCommands {
		require.Equal(t, gitTerminalPromptEnvironmentDisableConstant, recordedCommand.EnvironmentVariables[gitTerminalPromptEnvironmentNameConstant])
		require.Equal(t, workspace.Path, recordedCommand.WorkingDirectory)
	}
}

func TestPullSkipsSubrepositoryUpdateForNestedCheckouts(t *testing.T) {
	executor := newStubGitExecutor()
	service := newTestService(t, executor)
	workspace, _ := createSubrepositoryWorkspace(t)

	pullError := service.Pull(context.Background(), workspace)

	require.NoError(t, pullError)
	for _, argumentSequence := range executor.recordedArguments() {
		require.NotEqual(t, gitSubmoduleSubcommandConstant, argumentSequence[0])
	}
}

func TestPullAbortsRebaseOnConflict(t *testing.T) {
	executor := newStubGitExecutor()
	pullArguments := []string{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant}
	executor.scriptResponse(gitPullSubcommandConstant, stubResponse{executionError: failedGitCommand(pullArguments, testConflictOutputConstant, "")})
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	pullError := service.Pull(context.Background(), workspace)

	require.ErrorIs(t, pullError, ErrRebaseConflict)
	recordedArguments := executor.recordedArguments()
	lastArguments := recordedArguments[len(recordedArguments)-1]
	require.Equal(t, []string{gitRebaseSubcommandConstant, gitRebaseAbortFlagConstant}, lastArguments)
}

func TestPushExecutesPrePushRebaseThenPush(t *testing.T) {
	executor := newStubGitExecutor()
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	pushError := service.Push(context.Background(), workspace)

	require.NoError(t, pushError)
	require.Equal(t, [][]string{
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant},
	}, executor.recordedArguments())
}

func TestPushRollsBackOneCommitWhenPrePushRebaseFails(t *testing.T) {
	executor := newStubGitExecutor()
	pullArguments := []string{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant}
	executor.scriptResponse(gitPullSubcommandConstant, stubResponse{executionError: failedGitCommand(pullArguments, testConflictOutputConstant, "")})
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	pushError := service.Push(context.Background(), workspace)

	require.ErrorIs(t, pushError, ErrRebaseConflict)
	require.Equal(t, [][]string{
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitRebaseSubcommandConstant, gitRebaseAbortFlagConstant},
		{gitResetSubcommandConstant, gitHardResetFlagConstant, gitParentOfHeadReferenceConstant},
	}, executor.recordedArguments())
}

func TestPushRollsBackOneCommitWhenRemoteRejectsPush(t *testing.T) {
	executor := newStubGitExecutor()
	pushArguments := []string{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant}
	executor.scriptResponse(gitPushSubcommandConstant, stubResponse{executionError: failedGitCommand(pushArguments, "", testRejectionOutputConstant)})
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	pushError := service.Push(context.Background(), workspace)

	require.ErrorIs(t, pushError, ErrPushRejected)
	require.Equal(t, [][]string{
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitResetSubcommandConstant, gitHardResetFlagConstant, gitParentOfHeadReferenceConstant},
	}, executor.recordedArguments())
}

func TestCommitAndPushSkipsCommitOnCleanTreeButStillPushes(t *testing.T) {
	executor := newStubGitExecutor()
	observerCore, observedLogs := observer.New(zap.InfoLevel)
	service, creationError := NewService(
		Dependencies{GitExecutor: executor, Logger: zap.New(observerCore)},
		Options{RemoteName: testRemoteNameConstant, BranchName: testBranchNameConstant},
	)
	require.NoError(t, creationError)
	workspace := createRootWorkspace(t)

	commitError := service.CommitAndPush(context.Background(), workspace, []string{testCommitMessageFlagConstant, testCommitMessageValueConstant})

	require.NoError(t, commitError)
	require.Equal(t, [][]string{
		{gitStatusSubcommandConstant, gitStatusShortFlagConstant},
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant},
	}, executor.recordedArguments())
	require.Equal(t, 1, observedLogs.FilterMessage(nothingToCommitLogMessageConstant).Len())
}

func TestCommitAndPushStagesAndCommitsDirtyTree(t *testing.T) {
	executor := newStubGitExecutor()
	executor.scriptResponse(gitStatusSubcommandConstant, stubResponse{result: execshell.ExecutionResult{StandardOutput: testDirtyStatusOutputConstant}})
	service := newTestService(t, executor)
	workspace := createRootWorkspace(t)

	commitError := service.CommitAndPush(context.Background(), workspace, []string{testCommitMessageFlagConstant, testCommitMessageValueConstant})

	require.NoError(t, commitError)
	require.Equal(t, [][]string{
		{gitStatusSubcommandConstant, gitStatusShortFlagConstant},
		{gitAddSubcommandConstant, gitAddAllFlagConstant},
		{gitCommitSubcommandConstant, testCommitMessageFlagConstant, testCommitMessageValueConstant},
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant},
	}, executor.recordedArguments())
}

func TestCommitSubrepoStateSkipsCommitWhenPointerUnchanged(t *testing.T) {
	workspace, parentPath := createSubrepositoryWorkspace(t)
	executor := newStubGitExecutor()
	executor.scriptResponse(gitRevParseSubcommandConstant, stubResponse{result: execshell.ExecutionResult{StandardOutput: parentPath + "\n"}})
	dryRunArguments := []string{gitCommitSubcommandConstant, gitCommitDryRunFlagConstant, gitCommitMessageFlagConstant, subrepoStateCommitMessageConstant}
	executor.scriptResponse(gitCommitSubcommandConstant, stubResponse{executionError: failedGitCommand(dryRunArguments, testNothingToCommitConstant, "")})

	observerCore, observedLogs := observer.New(zap.InfoLevel)
	service, creationError := NewService(
		Dependencies{GitExecutor: executor, Logger: zap.New(observerCore)},
		Options{RemoteName: testRemoteNameConstant, BranchName: testBranchNameConstant},
	)
	require.NoError(t, creationError)

	commitError := service.CommitSubrepoState(context.Background(), workspace.Path)

	require.NoError(t, commitError)
	require.Equal(t, 1, observedLogs.FilterMessage(subrepoPointerUnchangedMessageConstant).Len())
	for _, argumentSequence := range executor.recordedArguments() {
		require.NotEqual(t, gitPushSubcommandConstant, argumentSequence[0])
	}
}

func TestCommitSubrepoStateCommitsAndPushesChangedPointer(t *testing.T) {
	workspace, parentPath := createSubrepositoryWorkspace(t)
	executor := newStubGitExecutor()
	executor.scriptResponse(gitRevParseSubcommandConstant, stubResponse{result: execshell.ExecutionResult{StandardOutput: parentPath + "\n"}})
	executor.scriptResponse(gitCommitSubcommandConstant, stubResponse{result: execshell.ExecutionResult{StandardOutput: "1 file changed"}})
	service := newTestService(t, executor)

	commitError := service.CommitSubrepoState(context.Background(), workspace.Path)

	require.NoError(t, commitError)
	require.Equal(t, [][]string{
		{gitRevParseSubcommandConstant, gitShowToplevelFlagConstant},
		{gitCheckoutSubcommandConstant, testBranchNameConstant},
		{gitAddSubcommandConstant, testSubrepositoryNameConstant},
		{gitCommitSubcommandConstant, gitCommitDryRunFlagConstant, gitCommitMessageFlagConstant, subrepoStateCommitMessageConstant},
		{gitCommitSubcommandConstant, gitCommitMessageFlagConstant, subrepoStateCommitMessageConstant},
		{gitPullSubcommandConstant, gitRebasePullFlagConstant, testRemoteNameConstant, testBranchNameConstant},
		{gitPushSubcommandConstant, testRemoteNameConstant, testBranchNameConstant},
	}, executor.recordedArguments())
}

func TestCommitAndPushPropagatesSubrepositoryPointer(t *testing.T) {
	workspace, parentPath := createSubrepositoryWorkspace(t)
	executor := newStubGitExecutor()
	executor.scriptResponse(gitRevParseSubcommandConstant, stubResponse{result: execshell.ExecutionResult{StandardOutput: parentPath + "\n"}})
	dryRunArguments := []string{gitCommitSubcommandConstant, gitCommitDryRunFlagConstant, gitCommitMessageFlagConstant, subrepoStateCommitMessageConstant}
	executor.scriptResponse(gitCommitSubcommandConstant, stubResponse{executionError: failedGitCommand(dryRunArguments, testNothingToCommitConstant, "")})
	service := newTestService(t, executor)

	commitError := service.CommitAndPush(context.Background(), workspace, nil)

	require.NoError(t, commitError)
	recordedArguments := executor.recordedArguments()
	require.Equal(t, []string{gitRevParseSubcommandConstant, gitShowToplevelFlagConstant}, recordedArguments[3])
}

func TestOpenWorkspaceClassifiesRepositoryKind(t *testing.T) {
	rootWorkspace := createRootWorkspace(t)
	require.Equal(t, RepositoryKindRoot, rootWorkspace.Kind)
	require.False(t, rootWorkspace.IsSubrepository())

	subrepositoryWorkspace, _ := createSubrepositoryWorkspace(t)
	require.Equal(t, RepositoryKindSubrepository, subrepositoryWorkspace.Kind)
	require.True(t, subrepositoryWorkspace.IsSubrepository())
}

func TestOpenWorkspaceRejectsMissingAndUnversionedPaths(t *testing.T) {
	_, missingError := OpenWorkspace(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, missingError, ErrWorkspaceMissing)

	_, unversionedError := OpenWorkspace(t.TempDir())
	require.ErrorIs(t, unversionedError, ErrWorkspaceNotRepository)
}

func TestClassifyGitErrorMapsOutputsToOutcomes(t *testing.T) {
	testCases := []struct {
		name            string
		executionError  error
		expectedOutcome CommandOutcome
	}{
		{
			name:            "NilError",
			executionError:  nil,
			expectedOutcome: OutcomeSuccess,
		},
		{
			name:            "ConflictOutput",
			executionError:  failedGitCommand(nil, testConflictOutputConstant, ""),
			expectedOutcome: OutcomeConflict,
		},
		{
			name:            "RejectionOutput",
			executionError:  failedGitCommand(nil, "", testRejectionOutputConstant),
			expectedOutcome: OutcomeRejected,
		},
		{
			name:            "UnclassifiedFailure",
			executionError:  failedGitCommand(nil, "", "fatal: unable to access remote"),
			expectedOutcome: OutcomeOtherError,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expectedOutcome, ClassifyGitError(testCase.executionError))
		})
	}
}
