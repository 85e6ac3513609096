package sandbox

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	testSandboxRootConstant          = "/workspaces/tool-env"
	testInterpreterPathConstant      = "python3"
	testDebugInterpreterNameConstant = "python3-dbg"
	testDebugInterpreterPathConstant = "/usr/bin/python3-dbg"
	testInitialSearchPathConstant    = "/usr/local/bin:/usr/bin"
)

type stubCommandExecutor struct {
	recordedCommands []execshell.ShellCommand
	executionError   error
}

func (executor *stubCommandExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, command)
	if executor.executionError != nil {
		return execshell.ExecutionResult{}, executor.executionError
	}
	return execshell.ExecutionResult{}, nil
}

type stubEnvironment struct {
	values              map[string]string
	executablesByName   map[string]string
	lookPathInvocations []string
}

func newStubEnvironment() *stubEnvironment {
	return &stubEnvironment{values: map[string]string{}, executablesByName: map[string]string{}}
}

func (environment *stubEnvironment) Get(key string) string {
	return environment.values[key]
}

func (environment *stubEnvironment) Set(key string, value string) error {
	environment.values[key] = value
	return nil
}

func (environment *stubEnvironment) LookPath(executableName string) (string, error) {
	environment.lookPathInvocations = append(environment.lookPathInvocations, executableName)
	resolvedPath, found := environment.executablesByName[executableName]
	if !found {
		return "", errors.New("executable file not found in $PATH")
	}
	return resolvedPath, nil
}

type stubFileSystem struct {
	existingPaths    map[string]bool
	recordedSymlinks [][2]string
}

func newStubFileSystem(existingPaths ...string) *stubFileSystem {
	pathSet := map[string]bool{}
	for _, existingPath := range existingPaths {
		pathSet[existingPath] = true
	}
	return &stubFileSystem{existingPaths: pathSet}
}

func (fileSystem *stubFileSystem) Stat(path string) (fs.FileInfo, error) {
	if fileSystem.existingPaths[path] {
		return nil, nil
	}
	return nil, fs.ErrNotExist
}

func (fileSystem *stubFileSystem) Symlink(oldName string, newName string) error {
	fileSystem.recordedSymlinks = append(fileSystem.recordedSymlinks, [2]string{oldName, newName})
	return nil
}

func newTestProvisioner(t *testing.T, executor CommandExecutor, environment ProcessEnvironment, fileSystem FileSystem) *Provisioner {
	t.Helper()
	provisioner, creationError := NewProvisioner(
		Dependencies{Executor: executor, Environment: environment, FileSystem: fileSystem},
		Options{Root: testSandboxRootConstant, InterpreterPath: testInterpreterPathConstant, DebugInterpreterName: testDebugInterpreterNameConstant},
	)
	require.NoError(t, creationError)
	return provisioner
}

func TestNewProvisionerValidatesDependenciesAndOptions(t *testing.T) {
	testCases := []struct {
		name         string
		dependencies Dependencies
		options      Options
		expectedErr  error
	}{
		{
			name:         "MissingExecutor",
			dependencies: Dependencies{Environment: newStubEnvironment()},
			options:      Options{Root: testSandboxRootConstant},
			expectedErr:  ErrCommandExecutorNotConfigured,
		},
		{
			name:         "MissingEnvironment",
			dependencies: Dependencies{Executor: &stubCommandExecutor{}},
			options:      Options{Root: testSandboxRootConstant},
			expectedErr:  ErrProcessEnvironmentNotConfigured,
		},
		{
			name:         "MissingRoot",
			dependencies: Dependencies{Executor: &stubCommandExecutor{}, Environment: newStubEnvironment()},
			options:      Options{Root: "  "},
			expectedErr:  ErrSandboxRootRequired,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			provisioner, creationError := NewProvisioner(testCase.dependencies, testCase.options)
			require.ErrorIs(t, creationError, testCase.expectedErr)
			require.Nil(t, provisioner)
		})
	}
}

func TestEnsureSkipsProvisioningInsideActiveSandbox(t *testing.T) {
	executor := &stubCommandExecutor{}
	environment := newStubEnvironment()
	environment.values[isolationMarkerEnvironmentVariableConstant] = testSandboxRootConstant
	environment.values[searchPathEnvironmentVariableConstant] = testInitialSearchPathConstant

	provisioner := newTestProvisioner(t, executor, environment, newStubFileSystem())
	require.NoError(t, provisioner.Ensure(context.Background()))

	require.Empty(t, executor.recordedCommands)
	require.Equal(t, testInitialSearchPathConstant, environment.values[searchPathEnvironmentVariableConstant])
}

func TestEnsureActivatesExistingRootWithoutCreating(t *testing.T) {
	executor := &stubCommandExecutor{}
	environment := newStubEnvironment()
	environment.values[searchPathEnvironmentVariableConstant] = testInitialSearchPathConstant

	provisioner := newTestProvisioner(t, executor, environment, newStubFileSystem(testSandboxRootConstant))
	require.NoError(t, provisioner.Ensure(context.Background()))

	require.Empty(t, executor.recordedCommands)
	expectedSearchPath := filepath.Join(testSandboxRootConstant, binDirectoryNameConstant) + searchPathSeparatorConstant + testInitialSearchPathConstant
	require.Equal(t, expectedSearchPath, environment.values[searchPathEnvironmentVariableConstant])
	require.Equal(t, testSandboxRootConstant, environment.values[isolationMarkerEnvironmentVariableConstant])
}

func TestEnsureCreatesStandardSandboxWhenDebugInterpreterAbsent(t *testing.T) {
	executor := &stubCommandExecutor{}
	environment := newStubEnvironment()

	provisioner := newTestProvisioner(t, executor, environment, newStubFileSystem())
	require.NoError(t, provisioner.Ensure(context.Background()))

	require.Len(t, executor.recordedCommands, 1)
	require.Equal(t, execshell.CommandName(testInterpreterPathConstant), executor.recordedCommands[0].Name)
	require.Equal(
		t,
		[]string{environmentModuleFlagConstant, environmentModuleNameConstant, testSandboxRootConstant},
		executor.recordedCommands[0].Details.Arguments,
	)
	require.Equal(t, testSandboxRootConstant, environment.values[isolationMarkerEnvironmentVariableConstant])
}

func TestEnsureCreatesDebugSandboxAndSymlinkWhenDebugInterpreterPresent(t *testing.T) {
	executor := &stubCommandExecutor{}
	environment := newStubEnvironment()
	environment.executablesByName[testDebugInterpreterNameConstant] = testDebugInterpreterPathConstant
	fileSystem := newStubFileSystem()

	provisioner := newTestProvisioner(t, executor, environment, fileSystem)
	require.NoError(t, provisioner.Ensure(context.Background()))

	standardRoot := testSandboxRootConstant + standardSandboxSuffixConstant
	debugRoot := testSandboxRootConstant + debugSandboxSuffixConstant

	require.Len(t, executor.recordedCommands, 2)
	require.Equal(t, execshell.CommandName(testInterpreterPathConstant), executor.recordedCommands[0].Name)
	require.Equal(t, standardRoot, executor.recordedCommands[0].Details.Arguments[2])
	require.Equal(t, execshell.CommandName(testDebugInterpreterPathConstant), executor.recordedCommands[1].Name)
	require.Equal(t, debugRoot, executor.recordedCommands[1].Details.Arguments[2])

	require.Equal(t, [][2]string{{filepath.Base(standardRoot), testSandboxRootConstant}}, fileSystem.recordedSymlinks)
	require.Equal(t, testSandboxRootConstant, environment.values[isolationMarkerEnvironmentVariableConstant])
}

func TestEnsureIsIdempotentAcrossCalls(t *testing.T) {
	executor := &stubCommandExecutor{}
	environment := newStubEnvironment()

	provisioner := newTestProvisioner(t, executor, environment, newStubFileSystem())
	require.NoError(t, provisioner.Ensure(context.Background()))
	require.NoError(t, provisioner.Ensure(context.Background()))

	require.Len(t, executor.recordedCommands, 1)
}

func TestEnsurePropagatesCreationFailureWithoutActivating(t *testing.T) {
	creationFailure := errors.New("venv creation failed")
	executor := &stubCommandExecutor{executionError: creationFailure}
	environment := newStubEnvironment()

	provisioner := newTestProvisioner(t, executor, environment, newStubFileSystem())
	ensureError := provisioner.Ensure(context.Background())

	require.ErrorIs(t, ensureError, creationFailure)
	require.Empty(t, environment.values[isolationMarkerEnvironmentVariableConstant])
}
