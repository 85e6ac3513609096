package swap

import (
	"strings"
	"time"
)

const (
	defaultRetentionHoursConstant = 72

	tempRootConfigurationKeySuffixConstant       = ".temp_root"
	retentionHoursConfigurationKeySuffixConstant = ".retention_hours"
)

// CommandConfiguration captures configuration values for replacement and pruning.
type CommandConfiguration struct {
	TempRoot       string `mapstructure:"temp_root"`
	RetentionHours int    `mapstructure:"retention_hours"`
}

// DefaultCommandConfiguration provides baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		TempRoot:       "",
		RetentionHours: defaultRetentionHoursConstant,
	}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + tempRootConfigurationKeySuffixConstant:       defaults.TempRoot,
		configurationKeyPrefix + retentionHoursConfigurationKeySuffixConstant: defaults.RetentionHours,
	}
}

// Sanitize trims configuration values and applies defaults for invalid entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.TempRoot = strings.TrimSpace(configuration.TempRoot)
	if sanitized.RetentionHours <= 0 {
		sanitized.RetentionHours = defaultRetentionHoursConstant
	}
	return sanitized
}

// RetentionWindow converts the configured retention hours into a duration.
func (configuration CommandConfiguration) RetentionWindow() time.Duration {
	return time.Duration(configuration.RetentionHours) * time.Hour
}
