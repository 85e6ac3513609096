package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/cycle"
	"github.com/temirov/cisync/internal/gitsync"
	"github.com/temirov/cisync/internal/sandbox"
	"github.com/temirov/cisync/internal/secrets"
	"github.com/temirov/cisync/internal/swap"
	"github.com/temirov/cisync/internal/utils"
)

const (
	applicationNameConstant                 = "cisync"
	applicationShortDescriptionConstant     = "Transactional workspace synchronization for CI builds"
	applicationLongDescriptionConstant      = "cisync keeps CI workspaces synchronized with their remotes: transactional pull and push with rollback, atomic directory replacement with deferred deletion, interpreter sandbox provisioning, and operator alerting."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "CISYNC"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "cisync CLI executed"
	rootCommandDebugMessageConstant         = "cisync CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	toolsConfigurationKeyConstant           = "tools"
	syncConfigurationKeyConstant            = toolsConfigurationKeyConstant + ".sync"
	replaceConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".replace"
	sandboxConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".sandbox"
	secretsConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".secrets"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Tools  ApplicationToolsConfiguration  `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Sync    gitsync.CommandConfiguration `mapstructure:"sync"`
	Replace swap.CommandConfiguration    `mapstructure:"replace"`
	Sandbox sandbox.CommandConfiguration `mapstructure:"sandbox"`
	Secrets secrets.CommandConfiguration `mapstructure:"secrets"`
}

// Application wires the Cobra root command, configuration loader, structured
// logger, and the process-wide cleanup registry for deferred deletions.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	cleanupRegistry        *swap.CleanupRegistry
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	application.cleanupRegistry = swap.NewCleanupRegistry(application.logger)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	syncBuilder := gitsync.CommandBuilder{
		LoggerProvider:               loggerProvider,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() gitsync.CommandConfiguration {
			return application.configuration.Tools.Sync
		},
	}
	if pullCommand, pullBuildError := syncBuilder.BuildPullCommand(); pullBuildError == nil {
		cobraCommand.AddCommand(pullCommand)
	}
	if pushCommand, pushBuildError := syncBuilder.BuildPushCommand(); pushBuildError == nil {
		cobraCommand.AddCommand(pushCommand)
	}
	if commitCommand, commitBuildError := syncBuilder.BuildCommitCommand(); commitBuildError == nil {
		cobraCommand.AddCommand(commitCommand)
	}
	if subrepoCommand, subrepoBuildError := syncBuilder.BuildSubrepoCommand(); subrepoBuildError == nil {
		cobraCommand.AddCommand(subrepoCommand)
	}

	replaceBuilder := swap.CommandBuilder{
		LoggerProvider: loggerProvider,
		RegistryProvider: func() *swap.CleanupRegistry {
			return application.cleanupRegistry
		},
	}
	if replaceCommand, replaceBuildError := replaceBuilder.BuildReplaceCommand(); replaceBuildError == nil {
		cobraCommand.AddCommand(replaceCommand)
	}

	sandboxBuilder := sandbox.CommandBuilder{
		LoggerProvider:               loggerProvider,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() sandbox.CommandConfiguration {
			return application.configuration.Tools.Sandbox
		},
	}
	if sandboxCommand, sandboxBuildError := sandboxBuilder.BuildSandboxCommand(); sandboxBuildError == nil {
		cobraCommand.AddCommand(sandboxCommand)
	}

	alertBuilder := secrets.CommandBuilder{
		LoggerProvider:               loggerProvider,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() secrets.CommandConfiguration {
			return application.configuration.Tools.Secrets
		},
	}
	if alertCommand, alertBuildError := alertBuilder.BuildAlertCommand(); alertBuildError == nil {
		cobraCommand.AddCommand(alertCommand)
	}

	cycleBuilder := cycle.CommandBuilder{
		LoggerProvider:               loggerProvider,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		RegistryProvider: func() *swap.CleanupRegistry {
			return application.cleanupRegistry
		},
		GitConfigurationProvider: func() gitsync.CommandConfiguration {
			return application.configuration.Tools.Sync
		},
		SecretsConfigurationProvider: func() secrets.CommandConfiguration {
			return application.configuration.Tools.Secrets
		},
	}
	if cycleCommand, cycleBuildError := cycleBuilder.BuildCycleCommand(); cycleBuildError == nil {
		cobraCommand.AddCommand(cycleCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy, drains the cleanup
// registry, and flushes the logger. The registry also drains when the process
// receives SIGINT or SIGTERM; either way it drains exactly once.
func (application *Application) Execute() error {
	signalStop := application.flushRegistryOnSignal()
	defer signalStop()

	executionError := application.rootCommand.Execute()
	application.cleanupRegistry.FlushAll()

	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) flushRegistryOnSignal() func() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, channelOpen := <-signalChannel; !channelOpen {
			return
		}
		application.cleanupRegistry.FlushAll()
		os.Exit(1)
	}()
	return func() {
		signal.Stop(signalChannel)
		close(signalChannel)
	}
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range gitsync.DefaultConfigurationValues(syncConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range swap.DefaultConfigurationValues(replaceConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range sandbox.DefaultConfigurationValues(sandboxConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}
	for configurationKey, configurationValue := range secrets.DefaultConfigurationValues(secretsConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger
	application.cleanupRegistry.SetLogger(logger)

	application.startStaleTempPruning()

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// startStaleTempPruning removes leftover staging directories from interrupted
// prior runs. Pruning is best-effort and only runs when a temp root is
// configured.
func (application *Application) startStaleTempPruning() {
	replaceConfiguration := application.configuration.Tools.Replace.Sanitize()
	if len(replaceConfiguration.TempRoot) == 0 {
		return
	}
	pruner := swap.NewPruner(nil, nil, application.logger)
	pruner.PruneStale(replaceConfiguration.TempRoot, replaceConfiguration.RetentionWindow())
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
	)

	if len(arguments) == 0 {
		return command.Help()
	}

	return nil
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
