package swap

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	pathutils "github.com/temirov/cisync/internal/utils/path"
)

const (
	replaceCommandUseConstant              = "replace"
	replaceCommandShortDescriptionConstant = "Swap a staged directory into place atomically"
	replaceCommandLongDescriptionConstant  = "replace parks the current target under a staging name, renames the staged source into place, and defers removal of the parked directory until process exit."

	sourceFlagNameConstant         = "source"
	sourceFlagDescriptionConstant  = "Path to the staged replacement directory"
	targetFlagNameConstant         = "target"
	targetFlagDescriptionConstant  = "Path the replacement is swapped into"
	stagingFlagNameConstant        = "staging"
	stagingFlagDescriptionConstant = "Override for the parked-directory path"

	replaceCompletedMessageTemplateConstant = "REPLACED: %s\n"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// RegistryProvider yields the process-wide deferred-deletion registry.
type RegistryProvider func() *CleanupRegistry

// CommandBuilder assembles the directory replacement command.
type CommandBuilder struct {
	LoggerProvider   LoggerProvider
	RegistryProvider RegistryProvider
	FileSystem       FileSystem
}

var commandPathSanitizer = pathutils.NewWorkspacePathSanitizer()

// BuildReplaceCommand constructs the replace command.
func (builder *CommandBuilder) BuildReplaceCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   replaceCommandUseConstant,
		Short: replaceCommandShortDescriptionConstant,
		Long:  replaceCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			sourceFlagValue, sourceFlagError := command.Flags().GetString(sourceFlagNameConstant)
			if sourceFlagError != nil {
				return sourceFlagError
			}
			targetFlagValue, targetFlagError := command.Flags().GetString(targetFlagNameConstant)
			if targetFlagError != nil {
				return targetFlagError
			}
			stagingFlagValue, stagingFlagError := command.Flags().GetString(stagingFlagNameConstant)
			if stagingFlagError != nil {
				return stagingFlagError
			}

			sourcePath, sourceSanitizeError := commandPathSanitizer.Sanitize(sourceFlagValue)
			if sourceSanitizeError != nil {
				return fmt.Errorf("%s: %w", sourceFlagNameConstant, sourceSanitizeError)
			}
			targetPath, targetSanitizeError := commandPathSanitizer.Sanitize(targetFlagValue)
			if targetSanitizeError != nil {
				return fmt.Errorf("%s: %w", targetFlagNameConstant, targetSanitizeError)
			}
			stagingPath := ""
			if len(strings.TrimSpace(stagingFlagValue)) > 0 {
				sanitizedStagingPath, stagingSanitizeError := commandPathSanitizer.Sanitize(stagingFlagValue)
				if stagingSanitizeError != nil {
					return fmt.Errorf("%s: %w", stagingFlagNameConstant, stagingSanitizeError)
				}
				stagingPath = sanitizedStagingPath
			}

			replacer, replacerCreationError := builder.buildReplacer()
			if replacerCreationError != nil {
				return replacerCreationError
			}
			if replaceError := replacer.Replace(sourcePath, targetPath, stagingPath); replaceError != nil {
				return replaceError
			}
			fmt.Fprintf(command.OutOrStdout(), replaceCompletedMessageTemplateConstant, targetPath)
			return nil
		},
	}
	command.Flags().String(sourceFlagNameConstant, "", sourceFlagDescriptionConstant)
	command.Flags().String(targetFlagNameConstant, "", targetFlagDescriptionConstant)
	command.Flags().String(stagingFlagNameConstant, "", stagingFlagDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) buildReplacer() (*Replacer, error) {
	logger := builder.resolveLogger()

	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = NewOSFileSystem()
	}

	var registry *CleanupRegistry
	if builder.RegistryProvider != nil {
		registry = builder.RegistryProvider()
	}
	if registry == nil {
		registry = NewCleanupRegistry(logger)
	}

	return NewReplacer(Dependencies{
		FileSystem: fileSystem,
		Registry:   registry,
		Logger:     logger,
	})
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
