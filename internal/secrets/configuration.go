package secrets

import "strings"

const (
	bundleConfigurationKeySuffixConstant       = ".bundle"
	passwordFileConfigurationKeySuffixConstant = ".password_file"
	directoryConfigurationKeySuffixConstant    = ".directory"
	searchPathConfigurationKeySuffixConstant   = ".search_path_variable"
	webhookConfigurationKeySuffixConstant      = ".webhook_url"
	channelConfigurationKeySuffixConstant      = ".channel"
	senderConfigurationKeySuffixConstant       = ".sender"
)

// CommandConfiguration captures configuration values for secret material and alerting.
type CommandConfiguration struct {
	Bundle             string `mapstructure:"bundle"`
	PasswordFile       string `mapstructure:"password_file"`
	Directory          string `mapstructure:"directory"`
	SearchPathVariable string `mapstructure:"search_path_variable"`
	WebhookURL         string `mapstructure:"webhook_url"`
	Channel            string `mapstructure:"channel"`
	Sender             string `mapstructure:"sender"`
}

// DefaultCommandConfiguration provides baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{SearchPathVariable: defaultSearchPathVariableConstant}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + bundleConfigurationKeySuffixConstant:       defaults.Bundle,
		configurationKeyPrefix + passwordFileConfigurationKeySuffixConstant: defaults.PasswordFile,
		configurationKeyPrefix + directoryConfigurationKeySuffixConstant:    defaults.Directory,
		configurationKeyPrefix + searchPathConfigurationKeySuffixConstant:   defaults.SearchPathVariable,
		configurationKeyPrefix + webhookConfigurationKeySuffixConstant:      defaults.WebhookURL,
		configurationKeyPrefix + channelConfigurationKeySuffixConstant:      defaults.Channel,
		configurationKeyPrefix + senderConfigurationKeySuffixConstant:       defaults.Sender,
	}
}

// Sanitize trims configuration values and applies defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := CommandConfiguration{
		Bundle:             strings.TrimSpace(configuration.Bundle),
		PasswordFile:       strings.TrimSpace(configuration.PasswordFile),
		Directory:          strings.TrimSpace(configuration.Directory),
		SearchPathVariable: strings.TrimSpace(configuration.SearchPathVariable),
		WebhookURL:         strings.TrimSpace(configuration.WebhookURL),
		Channel:            strings.TrimSpace(configuration.Channel),
		Sender:             strings.TrimSpace(configuration.Sender),
	}
	if len(sanitized.SearchPathVariable) == 0 {
		sanitized.SearchPathVariable = defaultSearchPathVariableConstant
	}
	return sanitized
}
