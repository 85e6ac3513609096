package execshell

import (
	"fmt"
	"strings"
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"
)

const (
	gitResetSubcommandNameConstant     = "reset"
	gitCheckoutSubcommandNameConstant  = "checkout"
	gitPullSubcommandNameConstant      = "pull"
	gitRebaseSubcommandNameConstant    = "rebase"
	gitPushSubcommandNameConstant      = "push"
	gitSubmoduleSubcommandNameConstant = "submodule"
	gitAddSubcommandNameConstant       = "add"
	gitCommitSubcommandNameConstant    = "commit"
	gitStatusSubcommandNameConstant    = "status"
	gitRevParseSubcommandNameConstant  = "rev-parse"
)

var gitSubcommandDescriptionMapping = map[string]string{
	gitResetSubcommandNameConstant:     "Resetting worktree",
	gitCheckoutSubcommandNameConstant:  "Checking out branch",
	gitPullSubcommandNameConstant:      "Pulling from remote",
	gitRebaseSubcommandNameConstant:    "Managing rebase",
	gitPushSubcommandNameConstant:      "Pushing to remote",
	gitSubmoduleSubcommandNameConstant: "Updating subrepositories",
	gitAddSubcommandNameConstant:       "Staging changes",
	gitCommitSubcommandNameConstant:    "Committing changes",
	gitStatusSubcommandNameConstant:    "Inspecting worktree status",
	gitRevParseSubcommandNameConstant:  "Resolving repository metadata",
}

// CommandMessageFormatter renders human-oriented descriptions for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command that is beginning execution.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	if description, found := formatter.describeGitSubcommand(command); found {
		return fmt.Sprintf(commandLabelTemplateConstant, description, formatter.formatWorkingDirectorySuffix(command))
	}
	return fmt.Sprintf(genericStartTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildSuccessMessage describes a command that completed successfully.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(genericSuccessTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildFailureMessage describes a command that completed with a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return fmt.Sprintf(
		genericFailureTemplateConstant,
		formatter.formatCommandLabel(command),
		result.ExitCode,
		formatter.formatStandardErrorSuffix(result.StandardError),
	)
}

// BuildExecutionFailureMessage describes a command that could not be executed.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return fmt.Sprintf(genericExecutionFailureTemplateConstant, formatter.formatCommandLabel(command), formatter.describeFailure(failure))
}

func (formatter CommandMessageFormatter) describeGitSubcommand(command ShellCommand) (string, bool) {
	if command.Name != CommandGit {
		return "", false
	}
	if len(command.Details.Arguments) == 0 {
		return "", false
	}
	description, found := gitSubcommandDescriptionMapping[command.Details.Arguments[0]]
	return description, found
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = commandLabel + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, formatter.describeWorkingDirectory(command))
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	if len(command.Details.WorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return command.Details.WorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}
