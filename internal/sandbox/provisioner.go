package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	isolationMarkerEnvironmentVariableConstant = "VIRTUAL_ENV"
	searchPathEnvironmentVariableConstant      = "PATH"
	searchPathSeparatorConstant                = ":"
	binDirectoryNameConstant                   = "bin"
	standardSandboxSuffixConstant              = ".standard"
	debugSandboxSuffixConstant                 = ".debug"
	environmentModuleFlagConstant              = "-m"
	environmentModuleNameConstant              = "venv"

	executorMissingMessageConstant    = "command executor not configured"
	environmentMissingMessageConstant = "process environment not configured"
	rootRequiredMessageConstant       = "sandbox root must be provided"

	sandboxCreationFailureTemplateConstant  = "failed to create sandbox at %s: %w"
	sandboxSymlinkFailureTemplateConstant   = "failed to link sandbox root %s: %w"
	sandboxInspectFailureTemplateConstant   = "failed to inspect sandbox root %s: %w"
	sandboxActivateFailureTemplateConstant  = "failed to activate sandbox at %s: %w"
	alreadyInsideSandboxLogMessageConstant  = "already inside a sandbox, skipping provisioning"
	existingSandboxFoundLogMessageConstant  = "existing sandbox root found, activating"
	debugInterpreterFoundLogMessageConstant = "debug interpreter found, provisioning debug sandbox"
	sandboxActivatedLogMessageConstant      = "sandbox activated"
	sandboxRootLogFieldConstant             = "sandbox_root"
	interpreterLogFieldConstant             = "interpreter"
)

// ErrCommandExecutorNotConfigured indicates the executor dependency was missing.
var ErrCommandExecutorNotConfigured = errors.New(executorMissingMessageConstant)

// ErrProcessEnvironmentNotConfigured indicates the environment dependency was missing.
var ErrProcessEnvironmentNotConfigured = errors.New(environmentMissingMessageConstant)

// ErrSandboxRootRequired indicates the sandbox root option was empty.
var ErrSandboxRootRequired = errors.New(rootRequiredMessageConstant)

// CommandExecutor runs external commands for sandbox creation.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// Dependencies enumerates external collaborators required by the Provisioner.
type Dependencies struct {
	Executor    CommandExecutor
	Environment ProcessEnvironment
	FileSystem  FileSystem
	Logger      *zap.Logger
}

// Options captures the sandbox layout settings.
type Options struct {
	Root                 string
	InterpreterPath      string
	DebugInterpreterName string
}

// Provisioner ensures an isolated interpreter sandbox exists and is active in
// the current process environment.
type Provisioner struct {
	executor             CommandExecutor
	environment          ProcessEnvironment
	fileSystem           FileSystem
	logger               *zap.Logger
	root                 string
	interpreterPath      string
	debugInterpreterName string
}

// NewProvisioner validates the dependencies and options and constructs a Provisioner.
func NewProvisioner(dependencies Dependencies, options Options) (*Provisioner, error) {
	if dependencies.Executor == nil {
		return nil, ErrCommandExecutorNotConfigured
	}
	if dependencies.Environment == nil {
		return nil, ErrProcessEnvironmentNotConfigured
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = NewOSFileSystem()
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmedRoot := strings.TrimSpace(options.Root)
	if len(trimmedRoot) == 0 {
		return nil, ErrSandboxRootRequired
	}
	interpreterPath := strings.TrimSpace(options.InterpreterPath)
	if len(interpreterPath) == 0 {
		interpreterPath = defaultInterpreterPathConstant
	}
	debugInterpreterName := strings.TrimSpace(options.DebugInterpreterName)
	if len(debugInterpreterName) == 0 {
		debugInterpreterName = defaultDebugInterpreterNameConstant
	}
	return &Provisioner{
		executor:             dependencies.Executor,
		environment:          dependencies.Environment,
		fileSystem:           fileSystem,
		logger:               logger,
		root:                 trimmedRoot,
		interpreterPath:      interpreterPath,
		debugInterpreterName: debugInterpreterName,
	}, nil
}

// Ensure makes certain a sandbox exists at the configured root and is active
// in the current process. Calling it from inside an active sandbox is a
// logged no-op.
func (provisioner *Provisioner) Ensure(executionContext context.Context) error {
	if len(provisioner.environment.Get(isolationMarkerEnvironmentVariableConstant)) > 0 {
		provisioner.logger.Debug(alreadyInsideSandboxLogMessageConstant)
		return nil
	}

	rootExists, inspectError := provisioner.rootExists()
	if inspectError != nil {
		return fmt.Errorf(sandboxInspectFailureTemplateConstant, provisioner.root, inspectError)
	}
	if rootExists {
		provisioner.logger.Debug(existingSandboxFoundLogMessageConstant, zap.String(sandboxRootLogFieldConstant, provisioner.root))
		return provisioner.activate()
	}

	if creationError := provisioner.create(executionContext); creationError != nil {
		return creationError
	}
	return provisioner.activate()
}

func (provisioner *Provisioner) create(executionContext context.Context) error {
	debugInterpreterPath, lookupError := provisioner.environment.LookPath(provisioner.debugInterpreterName)
	if lookupError != nil {
		return provisioner.createSandbox(executionContext, provisioner.interpreterPath, provisioner.root)
	}

	provisioner.logger.Debug(debugInterpreterFoundLogMessageConstant, zap.String(interpreterLogFieldConstant, debugInterpreterPath))

	standardRoot := provisioner.root + standardSandboxSuffixConstant
	debugRoot := provisioner.root + debugSandboxSuffixConstant
	if creationError := provisioner.createSandbox(executionContext, provisioner.interpreterPath, standardRoot); creationError != nil {
		return creationError
	}
	if creationError := provisioner.createSandbox(executionContext, debugInterpreterPath, debugRoot); creationError != nil {
		return creationError
	}
	// The link target is relative so operators can retarget the root to the
	// debug sandbox without touching absolute paths.
	if symlinkError := provisioner.fileSystem.Symlink(filepath.Base(standardRoot), provisioner.root); symlinkError != nil {
		return fmt.Errorf(sandboxSymlinkFailureTemplateConstant, provisioner.root, symlinkError)
	}
	return nil
}

func (provisioner *Provisioner) createSandbox(executionContext context.Context, interpreterPath string, destinationRoot string) error {
	command := execshell.ShellCommand{
		Name: execshell.CommandName(interpreterPath),
		Details: execshell.CommandDetails{
			Arguments: []string{environmentModuleFlagConstant, environmentModuleNameConstant, destinationRoot},
		},
	}
	if _, executionError := provisioner.executor.Execute(executionContext, command); executionError != nil {
		return fmt.Errorf(sandboxCreationFailureTemplateConstant, destinationRoot, executionError)
	}
	return nil
}

func (provisioner *Provisioner) activate() error {
	binDirectory := filepath.Join(provisioner.root, binDirectoryNameConstant)
	updatedSearchPath := binDirectory
	if existingSearchPath := provisioner.environment.Get(searchPathEnvironmentVariableConstant); len(existingSearchPath) > 0 {
		updatedSearchPath = binDirectory + searchPathSeparatorConstant + existingSearchPath
	}
	if setError := provisioner.environment.Set(searchPathEnvironmentVariableConstant, updatedSearchPath); setError != nil {
		return fmt.Errorf(sandboxActivateFailureTemplateConstant, provisioner.root, setError)
	}
	if setError := provisioner.environment.Set(isolationMarkerEnvironmentVariableConstant, provisioner.root); setError != nil {
		return fmt.Errorf(sandboxActivateFailureTemplateConstant, provisioner.root, setError)
	}
	provisioner.logger.Info(sandboxActivatedLogMessageConstant, zap.String(sandboxRootLogFieldConstant, provisioner.root))
	return nil
}

func (provisioner *Provisioner) rootExists() (bool, error) {
	_, statError := provisioner.fileSystem.Stat(provisioner.root)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, statError
}
