package cycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/gitsync"
	"github.com/temirov/cisync/internal/sandbox"
	"github.com/temirov/cisync/internal/swap"
	pathutils "github.com/temirov/cisync/internal/utils/path"
)

const (
	pullStepWorkspaceRequiredMessageConstant   = "pull step requires a workspace"
	commitStepWorkspaceRequiredMessageConstant = "commit-and-push step requires a workspace"
	replaceStepSourceRequiredMessageConstant   = "replace step requires a source"
	replaceStepTargetRequiredMessageConstant   = "replace step requires a target"
	sandboxStepRootRequiredMessageConstant     = "sandbox step requires a root"
	unsupportedOperationTemplateConstant       = "unsupported cycle operation: %s"
	stepOptionsDecodeErrorTemplateConstant     = "failed to decode %s step options: %w"
	commitMessageFlagConstant                  = "-m"
)

var operationWorkspacePathSanitizer = pathutils.NewWorkspacePathSanitizer()

// SandboxFactory builds a provisioner for the sandbox layout a step names.
type SandboxFactory func(options sandbox.Options) (*sandbox.Provisioner, error)

// Environment exposes the composed services cycle operations execute against.
type Environment struct {
	GitService     *gitsync.Service
	Replacer       *swap.Replacer
	SandboxFactory SandboxFactory
	Logger         *zap.Logger
}

// Operation performs a single cycle step.
type Operation interface {
	Name() string
	Execute(executionContext context.Context, environment *Environment) error
}

// BuildOperations converts the declarative configuration into executable operations.
func BuildOperations(configuration Configuration) ([]Operation, error) {
	operations := make([]Operation, 0, len(configuration.Steps))
	for stepIndex := range configuration.Steps {
		step := configuration.Steps[stepIndex]
		operation, buildError := buildOperationFromStep(step, configuration.Workspace)
		if buildError != nil {
			return nil, buildError
		}
		operations = append(operations, operation)
	}
	return operations, nil
}

func buildOperationFromStep(step StepConfiguration, defaultWorkspace string) (Operation, error) {
	switch step.Operation {
	case OperationTypePull:
		return buildPullOperation(step.Options, defaultWorkspace)
	case OperationTypeReplace:
		return buildReplaceOperation(step.Options)
	case OperationTypeCommitAndPush:
		return buildCommitOperation(step.Options, defaultWorkspace)
	case OperationTypeSandbox:
		return buildSandboxOperation(step.Options)
	default:
		return nil, fmt.Errorf(unsupportedOperationTemplateConstant, step.Operation)
	}
}

func decodeStepOptions(operationType OperationType, options map[string]any, target any) error {
	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: target})
	if decoderError != nil {
		return fmt.Errorf(stepOptionsDecodeErrorTemplateConstant, operationType, decoderError)
	}
	if decodeError := decoder.Decode(options); decodeError != nil {
		return fmt.Errorf(stepOptionsDecodeErrorTemplateConstant, operationType, decodeError)
	}
	return nil
}

type pullOperationOptions struct {
	Workspace string `mapstructure:"workspace"`
}

// PullOperation resets a workspace and pulls its tracked branch.
type PullOperation struct {
	WorkspacePath string
}

func buildPullOperation(options map[string]any, defaultWorkspace string) (Operation, error) {
	var decodedOptions pullOperationOptions
	if decodeError := decodeStepOptions(OperationTypePull, options, &decodedOptions); decodeError != nil {
		return nil, decodeError
	}
	workspacePath := strings.TrimSpace(decodedOptions.Workspace)
	if len(workspacePath) == 0 {
		workspacePath = defaultWorkspace
	}
	if len(workspacePath) == 0 {
		return nil, errors.New(pullStepWorkspaceRequiredMessageConstant)
	}
	return &PullOperation{WorkspacePath: workspacePath}, nil
}

// Name identifies the operation in failure messages.
func (operation *PullOperation) Name() string {
	return string(OperationTypePull)
}

// Execute opens the workspace and pulls it.
func (operation *PullOperation) Execute(executionContext context.Context, environment *Environment) error {
	workspace, openError := openWorkspaceAt(operation.WorkspacePath)
	if openError != nil {
		return openError
	}
	return environment.GitService.Pull(executionContext, workspace)
}

type replaceOperationOptions struct {
	Source  string `mapstructure:"source"`
	Target  string `mapstructure:"target"`
	Staging string `mapstructure:"staging"`
}

// ReplaceOperation swaps a staged directory into place.
type ReplaceOperation struct {
	SourcePath  string
	TargetPath  string
	StagingPath string
}

func buildReplaceOperation(options map[string]any) (Operation, error) {
	var decodedOptions replaceOperationOptions
	if decodeError := decodeStepOptions(OperationTypeReplace, options, &decodedOptions); decodeError != nil {
		return nil, decodeError
	}
	sourcePath := strings.TrimSpace(decodedOptions.Source)
	if len(sourcePath) == 0 {
		return nil, errors.New(replaceStepSourceRequiredMessageConstant)
	}
	targetPath := strings.TrimSpace(decodedOptions.Target)
	if len(targetPath) == 0 {
		return nil, errors.New(replaceStepTargetRequiredMessageConstant)
	}
	return &ReplaceOperation{SourcePath: sourcePath, TargetPath: targetPath, StagingPath: strings.TrimSpace(decodedOptions.Staging)}, nil
}

// Name identifies the operation in failure messages.
func (operation *ReplaceOperation) Name() string {
	return string(OperationTypeReplace)
}

// Execute performs the directory swap.
func (operation *ReplaceOperation) Execute(executionContext context.Context, environment *Environment) error {
	return environment.Replacer.Replace(operation.SourcePath, operation.TargetPath, operation.StagingPath)
}

type commitOperationOptions struct {
	Workspace  string   `mapstructure:"workspace"`
	Message    string   `mapstructure:"message"`
	CommitArgs []string `mapstructure:"commit_args"`
}

// CommitOperation stages, commits, and pushes a workspace.
type CommitOperation struct {
	WorkspacePath        string
	CommitMessage        string
	ExtraCommitArguments []string
}

func buildCommitOperation(options map[string]any, defaultWorkspace string) (Operation, error) {
	var decodedOptions commitOperationOptions
	if decodeError := decodeStepOptions(OperationTypeCommitAndPush, options, &decodedOptions); decodeError != nil {
		return nil, decodeError
	}
	workspacePath := strings.TrimSpace(decodedOptions.Workspace)
	if len(workspacePath) == 0 {
		workspacePath = defaultWorkspace
	}
	if len(workspacePath) == 0 {
		return nil, errors.New(commitStepWorkspaceRequiredMessageConstant)
	}
	return &CommitOperation{
		WorkspacePath:        workspacePath,
		CommitMessage:        strings.TrimSpace(decodedOptions.Message),
		ExtraCommitArguments: decodedOptions.CommitArgs,
	}, nil
}

// Name identifies the operation in failure messages.
func (operation *CommitOperation) Name() string {
	return string(OperationTypeCommitAndPush)
}

// Execute opens the workspace and commits and pushes it.
func (operation *CommitOperation) Execute(executionContext context.Context, environment *Environment) error {
	workspace, openError := openWorkspaceAt(operation.WorkspacePath)
	if openError != nil {
		return openError
	}
	extraCommitArguments := operation.ExtraCommitArguments
	if len(operation.CommitMessage) > 0 {
		extraCommitArguments = append([]string{commitMessageFlagConstant, operation.CommitMessage}, extraCommitArguments...)
	}
	return environment.GitService.CommitAndPush(executionContext, workspace, extraCommitArguments)
}

type sandboxOperationOptions struct {
	Root             string `mapstructure:"root"`
	Interpreter      string `mapstructure:"interpreter"`
	DebugInterpreter string `mapstructure:"debug_interpreter"`
}

// SandboxOperation provisions and activates an interpreter sandbox.
type SandboxOperation struct {
	Options sandbox.Options
}

func buildSandboxOperation(options map[string]any) (Operation, error) {
	var decodedOptions sandboxOperationOptions
	if decodeError := decodeStepOptions(OperationTypeSandbox, options, &decodedOptions); decodeError != nil {
		return nil, decodeError
	}
	rootPath := strings.TrimSpace(decodedOptions.Root)
	if len(rootPath) == 0 {
		return nil, errors.New(sandboxStepRootRequiredMessageConstant)
	}
	return &SandboxOperation{Options: sandbox.Options{
		Root:                 rootPath,
		InterpreterPath:      strings.TrimSpace(decodedOptions.Interpreter),
		DebugInterpreterName: strings.TrimSpace(decodedOptions.DebugInterpreter),
	}}, nil
}

// Name identifies the operation in failure messages.
func (operation *SandboxOperation) Name() string {
	return string(OperationTypeSandbox)
}

// Execute provisions the sandbox through the factory.
func (operation *SandboxOperation) Execute(executionContext context.Context, environment *Environment) error {
	provisioner, provisionerError := environment.SandboxFactory(operation.Options)
	if provisionerError != nil {
		return provisionerError
	}
	return provisioner.Ensure(executionContext)
}

func openWorkspaceAt(workspacePath string) (gitsync.Workspace, error) {
	sanitizedPath, sanitizeError := operationWorkspacePathSanitizer.Sanitize(workspacePath)
	if sanitizeError != nil {
		return gitsync.Workspace{}, sanitizeError
	}
	return gitsync.OpenWorkspace(sanitizedPath)
}
