package sandbox

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	sandboxCommandUseConstant              = "sandbox"
	sandboxCommandShortDescriptionConstant = "Provision and activate the interpreter sandbox"
	sandboxCommandLongDescriptionConstant  = "sandbox creates the configured interpreter sandbox when missing and activates it for the current process; inside an active sandbox the command is a no-op."

	rootFlagNameConstant               = "root"
	rootFlagDescriptionConstant        = "Path of the sandbox root"
	interpreterFlagNameConstant        = "interpreter"
	interpreterFlagDescriptionConstant = "Interpreter used to create the sandbox"

	sandboxReadyMessageTemplateConstant = "SANDBOX READY: %s\n"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the sandbox command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     CommandExecutor
	Environment                  ProcessEnvironment
	FileSystem                   FileSystem
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// BuildSandboxCommand constructs the sandbox command.
func (builder *CommandBuilder) BuildSandboxCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   sandboxCommandUseConstant,
		Short: sandboxCommandShortDescriptionConstant,
		Long:  sandboxCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configuration := builder.resolveConfiguration()

			rootFlagValue, rootFlagError := command.Flags().GetString(rootFlagNameConstant)
			if rootFlagError != nil {
				return rootFlagError
			}
			if len(strings.TrimSpace(rootFlagValue)) > 0 {
				configuration.Root = strings.TrimSpace(rootFlagValue)
			}
			interpreterFlagValue, interpreterFlagError := command.Flags().GetString(interpreterFlagNameConstant)
			if interpreterFlagError != nil {
				return interpreterFlagError
			}
			if len(strings.TrimSpace(interpreterFlagValue)) > 0 {
				configuration.Interpreter = strings.TrimSpace(interpreterFlagValue)
			}

			provisioner, provisionerCreationError := builder.buildProvisioner(configuration)
			if provisionerCreationError != nil {
				return provisionerCreationError
			}
			if ensureError := provisioner.Ensure(command.Context()); ensureError != nil {
				return ensureError
			}
			fmt.Fprintf(command.OutOrStdout(), sandboxReadyMessageTemplateConstant, configuration.Root)
			return nil
		},
	}
	command.Flags().String(rootFlagNameConstant, "", rootFlagDescriptionConstant)
	command.Flags().String(interpreterFlagNameConstant, "", interpreterFlagDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) buildProvisioner(configuration CommandConfiguration) (*Provisioner, error) {
	logger := builder.resolveLogger()

	executor := builder.Executor
	if executor == nil {
		humanReadableLogging := false
		if builder.HumanReadableLoggingProvider != nil {
			humanReadableLogging = builder.HumanReadableLoggingProvider()
		}
		shellExecutor, executorCreationError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
		if executorCreationError != nil {
			return nil, executorCreationError
		}
		executor = shellExecutor
	}

	environment := builder.Environment
	if environment == nil {
		environment = NewOSProcessEnvironment()
	}

	return NewProvisioner(
		Dependencies{Executor: executor, Environment: environment, FileSystem: builder.FileSystem, Logger: logger},
		Options{Root: configuration.Root, InterpreterPath: configuration.Interpreter, DebugInterpreterName: configuration.DebugInterpreter},
	)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
