package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	alertCommandUseConstant              = "alert"
	alertCommandShortDescriptionConstant = "Send an alert to the configured chat webhook and the log"
	alertCommandLongDescriptionConstant  = "alert materializes the credential bundle when needed, posts the message to the configured webhook, and mirrors it to the process log at the given severity."

	severityFlagNameConstant        = "severity"
	severityFlagDescriptionConstant = "Alert severity (info, warning, error)"
	messageFlagNameConstant         = "message"
	messageFlagShorthandConstant    = "m"
	messageFlagDescriptionConstant  = "Alert message body"

	unknownSeverityMessageConstant      = "severity must be one of info, warning, error"
	alertSentMessageTemplateConstant    = "ALERT SENT: %s\n"
	emptyMessageRequiredMessageConstant = "alert message must be provided"
)

// ErrUnknownSeverity indicates the severity flag held an unsupported value.
var ErrUnknownSeverity = errors.New(unknownSeverityMessageConstant)

// ErrAlertMessageRequired indicates the message flag was empty.
var ErrAlertMessageRequired = errors.New(emptyMessageRequiredMessageConstant)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the alert command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	Executor                     WebhookExecutor
	Environment                  ProcessEnvironment
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// BuildAlertCommand constructs the alert command.
func (builder *CommandBuilder) BuildAlertCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   alertCommandUseConstant,
		Short: alertCommandShortDescriptionConstant,
		Long:  alertCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			severityFlagValue, severityFlagError := command.Flags().GetString(severityFlagNameConstant)
			if severityFlagError != nil {
				return severityFlagError
			}
			severity, severityParseError := parseSeverity(severityFlagValue)
			if severityParseError != nil {
				return severityParseError
			}
			messageFlagValue, messageFlagError := command.Flags().GetString(messageFlagNameConstant)
			if messageFlagError != nil {
				return messageFlagError
			}
			if len(strings.TrimSpace(messageFlagValue)) == 0 {
				return ErrAlertMessageRequired
			}

			gateway, gatewayCreationError := builder.buildGateway()
			if gatewayCreationError != nil {
				return gatewayCreationError
			}
			if alertError := gateway.Alert(command.Context(), severity, messageFlagValue); alertError != nil {
				return alertError
			}
			fmt.Fprintf(command.OutOrStdout(), alertSentMessageTemplateConstant, severity)
			return nil
		},
	}
	command.Flags().String(severityFlagNameConstant, string(SeverityInfo), severityFlagDescriptionConstant)
	command.Flags().StringP(messageFlagNameConstant, messageFlagShorthandConstant, "", messageFlagDescriptionConstant)
	return command, nil
}

func parseSeverity(candidate string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(candidate))) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityError:
		return SeverityError, nil
	}
	return "", ErrUnknownSeverity
}

func (builder *CommandBuilder) buildGateway() (*Gateway, error) {
	logger := builder.resolveLogger()
	configuration := builder.resolveConfiguration()

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

	return NewGateway(
		Dependencies{Executor: executor, Environment: environment, Logger: logger},
		Options{
			BundlePath:         configuration.Bundle,
			PasswordFilePath:   configuration.PasswordFile,
			SecretsDirectory:   configuration.Directory,
			SearchPathVariable: configuration.SearchPathVariable,
			WebhookURL:         configuration.WebhookURL,
			Channel:            configuration.Channel,
			Sender:             configuration.Sender,
		},
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
