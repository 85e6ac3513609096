package sandbox

import "strings"

const (
	defaultInterpreterPathConstant      = "python3"
	defaultDebugInterpreterNameConstant = "python3-dbg"

	rootConfigurationKeySuffixConstant             = ".root"
	interpreterConfigurationKeySuffixConstant      = ".interpreter"
	debugInterpreterConfigurationKeySuffixConstant = ".debug_interpreter"
)

// CommandConfiguration captures configuration values for sandbox provisioning.
type CommandConfiguration struct {
	Root             string `mapstructure:"root"`
	Interpreter      string `mapstructure:"interpreter"`
	DebugInterpreter string `mapstructure:"debug_interpreter"`
}

// DefaultCommandConfiguration provides baseline configuration values.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Root:             "",
		Interpreter:      defaultInterpreterPathConstant,
		DebugInterpreter: defaultDebugInterpreterNameConstant,
	}
}

// DefaultConfigurationValues exposes defaults keyed for the configuration loader.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + rootConfigurationKeySuffixConstant:             defaults.Root,
		configurationKeyPrefix + interpreterConfigurationKeySuffixConstant:      defaults.Interpreter,
		configurationKeyPrefix + debugInterpreterConfigurationKeySuffixConstant: defaults.DebugInterpreter,
	}
}

// Sanitize trims configuration values and applies defaults for empty entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Root = strings.TrimSpace(configuration.Root)
	sanitized.Interpreter = strings.TrimSpace(configuration.Interpreter)
	if len(sanitized.Interpreter) == 0 {
		sanitized.Interpreter = defaultInterpreterPathConstant
	}
	sanitized.DebugInterpreter = strings.TrimSpace(configuration.DebugInterpreter)
	if len(sanitized.DebugInterpreter) == 0 {
		sanitized.DebugInterpreter = defaultDebugInterpreterNameConstant
	}
	return sanitized
}
