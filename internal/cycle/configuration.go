package cycle

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configurationLoadErrorTemplateConstant   = "failed to load cycle configuration: %w"
	configurationParseErrorTemplateConstant  = "failed to parse cycle configuration: %w"
	configurationPathRequiredMessageConstant = "cycle configuration path must be provided"
	configurationEmptyStepsMessageConstant   = "cycle configuration must define at least one step"
	configurationStepMissingMessageConstant  = "cycle step missing operation name"
)

// OperationType identifies supported cycle operations.
type OperationType string

// Supported cycle operations.
const (
	OperationTypePull          OperationType = OperationType("pull")
	OperationTypeReplace       OperationType = OperationType("replace")
	OperationTypeCommitAndPush OperationType = OperationType("commit-and-push")
	OperationTypeSandbox       OperationType = OperationType("sandbox")
)

// Configuration describes the ordered cycle steps loaded from YAML.
type Configuration struct {
	Workspace string              `yaml:"workspace"`
	Steps     []StepConfiguration `yaml:"steps"`
}

// StepConfiguration associates an operation type with declarative options.
type StepConfiguration struct {
	Operation OperationType  `yaml:"operation"`
	Options   map[string]any `yaml:"with"`
}

// LoadConfiguration reads the cycle definition from disk and performs basic validation.
func LoadConfiguration(filePath string) (Configuration, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return Configuration{}, errors.New(configurationPathRequiredMessageConstant)
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Configuration{}, fmt.Errorf(configurationLoadErrorTemplateConstant, readError)
	}

	var configuration Configuration
	if unmarshalError := yaml.Unmarshal(contentBytes, &configuration); unmarshalError != nil {
		return Configuration{}, fmt.Errorf(configurationParseErrorTemplateConstant, unmarshalError)
	}

	configuration.Workspace = strings.TrimSpace(configuration.Workspace)

	if len(configuration.Steps) == 0 {
		return Configuration{}, errors.New(configurationEmptyStepsMessageConstant)
	}

	for stepIndex := range configuration.Steps {
		trimmedOperation := strings.TrimSpace(string(configuration.Steps[stepIndex].Operation))
		if len(trimmedOperation) == 0 {
			return Configuration{}, errors.New(configurationStepMissingMessageConstant)
		}
		configuration.Steps[stepIndex].Operation = OperationType(trimmedOperation)
	}

	return configuration, nil
}
