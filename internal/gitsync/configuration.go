package gitsync

import "strings"

const (
	defaultRemoteNameConstant = "origin"
	defaultBranchNameConstant = "master"

	workspaceConfigurationKeySuffixConstant = ".workspace"
	remoteConfigurationKeySuffixConstant    = ".remote"
	branchConfigurationKeySuffixConstant    = ".branch"
)

// CommandConfiguration captures configuration values shared by the sync commands.
type CommandConfiguration struct {
	WorkspaceRoot string `mapstructure:"workspace"`
	RemoteName    string `mapstructure:"remote"`
	BranchName    string `mapstructure:"branch"`
}

// DefaultCommandConfiguration provides baseline configuration values for the sync commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		WorkspaceRoot: "",
		RemoteName:    defaultRemoteNameConstant,
		BranchName:    defaultBranchNameConstant,
	}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + workspaceConfigurationKeySuffixConstant: defaults.WorkspaceRoot,
		configurationKeyPrefix + remoteConfigurationKeySuffixConstant:    defaults.RemoteName,
		configurationKeyPrefix + branchConfigurationKeySuffixConstant:    defaults.BranchName,
	}
}

// Sanitize trims configuration values and applies defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	sanitized.WorkspaceRoot = strings.TrimSpace(configuration.WorkspaceRoot)
	sanitized.RemoteName = strings.TrimSpace(configuration.RemoteName)
	if len(sanitized.RemoteName) == 0 {
		sanitized.RemoteName = defaultRemoteNameConstant
	}
	sanitized.BranchName = strings.TrimSpace(configuration.BranchName)
	if len(sanitized.BranchName) == 0 {
		sanitized.BranchName = defaultBranchNameConstant
	}

	return sanitized
}
