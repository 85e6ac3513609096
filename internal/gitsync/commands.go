package gitsync

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
	pathutils "github.com/temirov/cisync/internal/utils/path"
)

const (
	pullCommandUseConstant              = "pull"
	pullCommandShortDescriptionConstant = "Reset the workspace and pull the tracked branch with rebase"
	pullCommandLongDescriptionConstant  = "pull discards local divergence, force-checks-out the tracked branch, and rebases onto the remote; root workspaces also update their subrepositories."

	pushCommandUseConstant              = "push"
	pushCommandShortDescriptionConstant = "Rebase onto the remote and push the tracked branch"
	pushCommandLongDescriptionConstant  = "push rebases the workspace onto the remote immediately before pushing; a failed rebase or rejected push rolls the local branch back one commit."

	commitCommandUseConstant              = "commit"
	commitCommandShortDescriptionConstant = "Stage all changes, commit when dirty, and push"
	commitCommandLongDescriptionConstant  = "commit stages every change under the workspace, commits when the tree is dirty, always pushes, and propagates subrepository pointers to the parent repository."

	subrepoCommandUseConstant              = "subrepo-commit"
	subrepoCommandShortDescriptionConstant = "Record a subrepository pointer in the parent repository"
	subrepoCommandLongDescriptionConstant  = "subrepo-commit stages the subrepository pointer in the parent repository and commits and pushes it when the pointer changed; unchanged pointers are a logged no-op."

	workspaceFlagNameConstant        = "workspace"
	workspaceFlagDescriptionConstant = "Path to the workspace checkout"
	messageFlagNameConstant          = "message"
	messageFlagShorthandConstant     = "m"
	messageFlagDescriptionConstant   = "Commit message supplied to git commit"
	commitArgumentFlagNameConstant   = "commit-arg"
	commitArgumentFlagUsageConstant  = "Additional argument appended to git commit (repeatable)"

	pullCompletedMessageTemplateConstant    = "PULLED: %s\n"
	pushCompletedMessageTemplateConstant    = "PUSHED: %s\n"
	commitCompletedMessageTemplateConstant  = "COMMITTED: %s\n"
	subrepoCompletedMessageTemplateConstant = "SUBREPO RECORDED: %s\n"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the workspace synchronization commands.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	GitExecutor                  GitExecutor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

var commandWorkspacePathSanitizer = pathutils.NewWorkspacePathSanitizer()

// BuildPullCommand constructs the pull command.
func (builder *CommandBuilder) BuildPullCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   pullCommandUseConstant,
		Short: pullCommandShortDescriptionConstant,
		Long:  pullCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			service, workspace, setupError := builder.prepare(command)
			if setupError != nil {
				return setupError
			}
			if pullError := service.Pull(command.Context(), workspace); pullError != nil {
				return pullError
			}
			fmt.Fprintf(command.OutOrStdout(), pullCompletedMessageTemplateConstant, workspace.Path)
			return nil
		},
	}
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagDescriptionConstant)
	return command, nil
}

// BuildPushCommand constructs the push command.
func (builder *CommandBuilder) BuildPushCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   pushCommandUseConstant,
		Short: pushCommandShortDescriptionConstant,
		Long:  pushCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			service, workspace, setupError := builder.prepare(command)
			if setupError != nil {
				return setupError
			}
			if pushError := service.Push(command.Context(), workspace); pushError != nil {
				return pushError
			}
			fmt.Fprintf(command.OutOrStdout(), pushCompletedMessageTemplateConstant, workspace.Path)
			return nil
		},
	}
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagDescriptionConstant)
	return command, nil
}

// BuildCommitCommand constructs the commit-and-push command.
func (builder *CommandBuilder) BuildCommitCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commitCommandUseConstant,
		Short: commitCommandShortDescriptionConstant,
		Long:  commitCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			service, workspace, setupError := builder.prepare(command)
			if setupError != nil {
				return setupError
			}

			commitMessage, messageFlagError := command.Flags().GetString(messageFlagNameConstant)
			if messageFlagError != nil {
				return messageFlagError
			}
			extraCommitArguments, commitArgumentFlagError := command.Flags().GetStringArray(commitArgumentFlagNameConstant)
			if commitArgumentFlagError != nil {
				return commitArgumentFlagError
			}
			if len(strings.TrimSpace(commitMessage)) > 0 {
				extraCommitArguments = append([]string{gitCommitMessageFlagConstant, commitMessage}, extraCommitArguments...)
			}

			if commitError := service.CommitAndPush(command.Context(), workspace, extraCommitArguments); commitError != nil {
				return commitError
			}
			fmt.Fprintf(command.OutOrStdout(), commitCompletedMessageTemplateConstant, workspace.Path)
			return nil
		},
	}
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagDescriptionConstant)
	command.Flags().StringP(messageFlagNameConstant, messageFlagShorthandConstant, "", messageFlagDescriptionConstant)
	command.Flags().StringArray(commitArgumentFlagNameConstant, nil, commitArgumentFlagUsageConstant)
	return command, nil
}

// BuildSubrepoCommand constructs the subrepo-commit command.
func (builder *CommandBuilder) BuildSubrepoCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   subrepoCommandUseConstant,
		Short: subrepoCommandShortDescriptionConstant,
		Long:  subrepoCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			service, workspace, setupError := builder.prepare(command)
			if setupError != nil {
				return setupError
			}
			if commitError := service.CommitSubrepoState(command.Context(), workspace.Path); commitError != nil {
				return commitError
			}
			fmt.Fprintf(command.OutOrStdout(), subrepoCompletedMessageTemplateConstant, workspace.Path)
			return nil
		},
	}
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagDescriptionConstant)
	return command, nil
}

func (builder *CommandBuilder) prepare(command *cobra.Command) (*Service, Workspace, error) {
	configuration := builder.resolveConfiguration()

	workspaceFlagValue, workspaceFlagError := command.Flags().GetString(workspaceFlagNameConstant)
	if workspaceFlagError != nil {
		return nil, Workspace{}, workspaceFlagError
	}
	workspaceCandidate := configuration.WorkspaceRoot
	if len(strings.TrimSpace(workspaceFlagValue)) > 0 {
		workspaceCandidate = workspaceFlagValue
	}

	workspacePath, sanitizeError := commandWorkspacePathSanitizer.Sanitize(workspaceCandidate)
	if sanitizeError != nil {
		return nil, Workspace{}, sanitizeError
	}

	workspace, openError := OpenWorkspace(workspacePath)
	if openError != nil {
		return nil, Workspace{}, openError
	}

	logger := builder.resolveLogger()
	gitExecutor, executorError := builder.resolveGitExecutor(logger)
	if executorError != nil {
		return nil, Workspace{}, executorError
	}

	service, serviceCreationError := NewService(
		Dependencies{GitExecutor: gitExecutor, Logger: logger},
		Options{RemoteName: configuration.RemoteName, BranchName: configuration.BranchName},
	)
	if serviceCreationError != nil {
		return nil, Workspace{}, serviceCreationError
	}

	return service, workspace, nil
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

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger) (GitExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	return execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), humanReadableLogging)
}
