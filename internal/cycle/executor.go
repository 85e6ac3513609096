package cycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/secrets"
)

const (
	cycleOperationFailureTemplateConstant = "cycle operation %s failed: %w"
	cycleAlertMessageTemplateConstant     = "sync cycle failed at step %s: %v"

	environmentMissingMessageConstant     = "cycle executor requires an environment"
	gitServiceMissingMessageConstant      = "cycle executor requires a git service"
	replacerMissingMessageConstant        = "cycle executor requires a replacer"
	sandboxFactoryMissingMessageConstant  = "cycle executor requires a sandbox factory"
	noOperationsConfiguredMessageConstant = "cycle executor requires at least one operation"

	stepStartedLogMessageConstant   = "cycle step started"
	stepCompletedLogMessageConstant = "cycle step completed"
	stepLogFieldConstant            = "step"
)

// ErrEnvironmentNotConfigured indicates the environment was missing.
var ErrEnvironmentNotConfigured = errors.New(environmentMissingMessageConstant)

// ErrGitServiceNotConfigured indicates the git service dependency was missing.
var ErrGitServiceNotConfigured = errors.New(gitServiceMissingMessageConstant)

// ErrReplacerNotConfigured indicates the replacer dependency was missing.
var ErrReplacerNotConfigured = errors.New(replacerMissingMessageConstant)

// ErrSandboxFactoryNotConfigured indicates the sandbox factory dependency was missing.
var ErrSandboxFactoryNotConfigured = errors.New(sandboxFactoryMissingMessageConstant)

// ErrNoOperationsConfigured indicates the operation list was empty.
var ErrNoOperationsConfigured = errors.New(noOperationsConfiguredMessageConstant)

// Alerter mirrors cycle failures to the operator channel.
type Alerter interface {
	Alert(executionContext context.Context, severity secrets.Severity, message string) error
}

// Executor runs cycle operations in order, stopping at the first failure.
type Executor struct {
	operations  []Operation
	environment *Environment
	alerter     Alerter
	logger      *zap.Logger
}

// NewExecutor validates the environment against the configured operations and
// constructs an Executor. The alerter is optional; when present, the first
// failing step is reported through it before the error propagates.
func NewExecutor(operations []Operation, environment *Environment, alerter Alerter) (*Executor, error) {
	if len(operations) == 0 {
		return nil, ErrNoOperationsConfigured
	}
	if environment == nil {
		return nil, ErrEnvironmentNotConfigured
	}
	for _, operation := range operations {
		switch operation.(type) {
		case *PullOperation, *CommitOperation:
			if environment.GitService == nil {
				return nil, ErrGitServiceNotConfigured
			}
		case *ReplaceOperation:
			if environment.Replacer == nil {
				return nil, ErrReplacerNotConfigured
			}
		case *SandboxOperation:
			if environment.SandboxFactory == nil {
				return nil, ErrSandboxFactoryNotConfigured
			}
		}
	}
	logger := environment.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{operations: append([]Operation{}, operations...), environment: environment, alerter: alerter, logger: logger}, nil
}

// Execute runs the operations in order. The first failure terminates the
// cycle and, when an alerter is configured, is reported before returning.
func (executor *Executor) Execute(executionContext context.Context) error {
	for _, operation := range executor.operations {
		executor.logger.Debug(stepStartedLogMessageConstant, zap.String(stepLogFieldConstant, operation.Name()))
		if executeError := operation.Execute(executionContext, executor.environment); executeError != nil {
			wrappedError := fmt.Errorf(cycleOperationFailureTemplateConstant, operation.Name(), executeError)
			executor.reportFailure(executionContext, operation.Name(), executeError)
			return wrappedError
		}
		executor.logger.Debug(stepCompletedLogMessageConstant, zap.String(stepLogFieldConstant, operation.Name()))
	}
	return nil
}

func (executor *Executor) reportFailure(executionContext context.Context, operationName string, failure error) {
	if executor.alerter == nil {
		return
	}
	alertMessage := fmt.Sprintf(cycleAlertMessageTemplateConstant, operationName, failure)
	// The cycle is already failing; an alerting failure must not mask it.
	_ = executor.alerter.Alert(executionContext, secrets.SeverityError, alertMessage)
}
