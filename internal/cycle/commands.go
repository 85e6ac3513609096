package cycle

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
	"github.com/temirov/cisync/internal/gitsync"
	"github.com/temirov/cisync/internal/sandbox"
	"github.com/temirov/cisync/internal/secrets"
	"github.com/temirov/cisync/internal/swap"
)

const (
	cycleCommandUseConstant              = "cycle"
	cycleCommandShortDescriptionConstant = "Run a declarative synchronization cycle"
	cycleCommandLongDescriptionConstant  = "cycle loads an ordered step file and runs it: pull workspaces, swap generated content into place, provision sandboxes, and commit results; the first failing step terminates the cycle."

	fileFlagNameConstant        = "file"
	fileFlagShorthandConstant   = "f"
	fileFlagDescriptionConstant = "Path to the cycle step file"

	cycleCompletedMessageTemplateConstant = "CYCLE COMPLETE: %d steps\n"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the cycle command from the composed service configurations.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	GitExecutor                  gitsync.GitExecutor
	RegistryProvider             func() *swap.CleanupRegistry
	HumanReadableLoggingProvider func() bool
	GitConfigurationProvider     func() gitsync.CommandConfiguration
	SecretsConfigurationProvider func() secrets.CommandConfiguration
}

// BuildCycleCommand constructs the cycle command.
func (builder *CommandBuilder) BuildCycleCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   cycleCommandUseConstant,
		Short: cycleCommandShortDescriptionConstant,
		Long:  cycleCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			configurationPath, fileFlagError := command.Flags().GetString(fileFlagNameConstant)
			if fileFlagError != nil {
				return fileFlagError
			}

			configuration, loadError := LoadConfiguration(configurationPath)
			if loadError != nil {
				return loadError
			}
			operations, buildError := BuildOperations(configuration)
			if buildError != nil {
				return buildError
			}

			executor, executorCreationError := builder.buildExecutor(operations)
			if executorCreationError != nil {
				return executorCreationError
			}
			if executionError := executor.Execute(command.Context()); executionError != nil {
				return executionError
			}
			fmt.Fprintf(command.OutOrStdout(), cycleCompletedMessageTemplateConstant, len(operations))
			return nil
		},
	}
	command.Flags().StringP(fileFlagNameConstant, fileFlagShorthandConstant, "", fileFlagDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) buildExecutor(operations []Operation) (*Executor, error) {
	logger := builder.resolveLogger()
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}

	shellExecutor, shellExecutorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
	if shellExecutorError != nil {
		return nil, shellExecutorError
	}

	gitExecutor := builder.GitExecutor
	if gitExecutor == nil {
		gitExecutor = shellExecutor
	}

	gitConfiguration := gitsync.DefaultCommandConfiguration()
	if builder.GitConfigurationProvider != nil {
		gitConfiguration = builder.GitConfigurationProvider().Sanitize()
	}
	gitService, gitServiceError := gitsync.NewService(
		gitsync.Dependencies{GitExecutor: gitExecutor, Logger: logger},
		gitsync.Options{RemoteName: gitConfiguration.RemoteName, BranchName: gitConfiguration.BranchName},
	)
	if gitServiceError != nil {
		return nil, gitServiceError
	}

	var registry *swap.CleanupRegistry
	if builder.RegistryProvider != nil {
		registry = builder.RegistryProvider()
	}
	if registry == nil {
		registry = swap.NewCleanupRegistry(logger)
	}
	replacer, replacerError := swap.NewReplacer(swap.Dependencies{FileSystem: swap.NewOSFileSystem(), Registry: registry, Logger: logger})
	if replacerError != nil {
		return nil, replacerError
	}

	sandboxFactory := func(options sandbox.Options) (*sandbox.Provisioner, error) {
		return sandbox.NewProvisioner(
			sandbox.Dependencies{Executor: shellExecutor, Environment: sandbox.NewOSProcessEnvironment(), Logger: logger},
			options,
		)
	}

	alerter, alerterError := builder.buildAlerter(shellExecutor, logger)
	if alerterError != nil {
		return nil, alerterError
	}

	environment := &Environment{
		GitService:     gitService,
		Replacer:       replacer,
		SandboxFactory: sandboxFactory,
		Logger:         logger,
	}
	return NewExecutor(operations, environment, alerter)
}

// buildAlerter wires the secrets gateway only when a bundle and directory are
// configured; a cycle without alerting configuration still runs.
func (builder *CommandBuilder) buildAlerter(executor secrets.WebhookExecutor, logger *zap.Logger) (Alerter, error) {
	if builder.SecretsConfigurationProvider == nil {
		return nil, nil
	}
	configuration := builder.SecretsConfigurationProvider().Sanitize()
	if len(configuration.Bundle) == 0 || len(configuration.Directory) == 0 {
		return nil, nil
	}
	gateway, gatewayError := secrets.NewGateway(
		secrets.Dependencies{Executor: executor, Environment: secrets.NewOSProcessEnvironment(), Logger: logger},
		secrets.Options{
			BundlePath:         configuration.Bundle,
			PasswordFilePath:   configuration.PasswordFile,
			SecretsDirectory:   configuration.Directory,
			SearchPathVariable: configuration.SearchPathVariable,
			WebhookURL:         configuration.WebhookURL,
			Channel:            configuration.Channel,
			Sender:             configuration.Sender,
		},
	)
	if gatewayError != nil {
		return nil, gatewayError
	}
	return gateway, nil
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
