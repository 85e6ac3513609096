package gitsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/cisync/internal/execshell"
)

const (
	gitExecutorMissingMessageConstant    = "git executor not configured"
	remoteNameRequiredMessageConstant    = "remote name must be provided"
	branchNameRequiredMessageConstant    = "branch name must be provided"
	rebaseConflictMessageConstant        = "rebase conflict while synchronizing with remote"
	pushRejectedMessageConstant          = "push rejected by remote"
	resetFailureTemplateConstant         = "failed to reset worktree: %w"
	checkoutFailureTemplateConstant      = "failed to checkout branch %q: %w"
	pullFailureTemplateConstant          = "failed to pull from remote: %w"
	pushFailureTemplateConstant          = "failed to push to remote: %w"
	submoduleFailureTemplateConstant     = "failed to update subrepositories: %w"
	statusFailureTemplateConstant        = "failed to inspect worktree status: %w"
	stageFailureTemplateConstant         = "failed to stage changes: %w"
	commitFailureTemplateConstant        = "failed to commit staged changes: %w"
	parentResolveFailureTemplateConstant = "failed to resolve parent repository of %s: %w"
	parentOpenFailureTemplateConstant    = "failed to open parent repository %s: %w"
	relativePathFailureTemplateConstant  = "failed to relativize subrepository path %s: %w"
)

const (
	gitResetSubcommandConstant        = "reset"
	gitHardResetFlagConstant          = "--hard"
	gitCheckoutSubcommandConstant     = "checkout"
	gitForceCheckoutFlagConstant      = "--force"
	gitPullSubcommandConstant         = "pull"
	gitRebasePullFlagConstant         = "--rebase"
	gitRebaseSubcommandConstant       = "rebase"
	gitRebaseAbortFlagConstant        = "--abort"
	gitPushSubcommandConstant         = "push"
	gitSubmoduleSubcommandConstant    = "submodule"
	gitSubmoduleUpdateActionConstant  = "update"
	gitSubmoduleInitFlagConstant      = "--init"
	gitSubmoduleRecursiveFlagConstant = "--recursive"
	gitStatusSubcommandConstant       = "status"
	gitStatusShortFlagConstant        = "--short"
	gitAddSubcommandConstant          = "add"
	gitAddAllFlagConstant             = "--all"
	gitCommitSubcommandConstant       = "commit"
	gitCommitDryRunFlagConstant       = "--dry-run"
	gitCommitMessageFlagConstant      = "-m"
	gitRevParseSubcommandConstant     = "rev-parse"
	gitShowToplevelFlagConstant       = "--show-toplevel"
	gitParentOfHeadReferenceConstant  = "HEAD~1"

	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"

	subrepoStateCommitMessageConstant = "Record subrepository state"
)

const (
	nothingToCommitLogMessageConstant      = "worktree clean, skipping commit"
	subrepoPointerUnchangedMessageConstant = "subrepository pointer unchanged, skipping commit"
	rollbackPerformedLogMessageConstant    = "rolled local branch back one commit"
	workspaceLogFieldNameConstant          = "workspace"
	subrepositoryLogFieldNameConstant      = "subrepository"
)

var noStagedChangeOutputMarkers = []string{
	"no changes",
	"nothing to commit",
	"nothing added",
}

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ErrRemoteNameRequired indicates the remote name option was empty.
var ErrRemoteNameRequired = errors.New(remoteNameRequiredMessageConstant)

// ErrBranchNameRequired indicates the branch name option was empty.
var ErrBranchNameRequired = errors.New(branchNameRequiredMessageConstant)

// ErrRebaseConflict indicates a rebase could not be completed; the rebase has
// been aborted and the workspace restored to a clean tree before this error
// surfaces.
var ErrRebaseConflict = errors.New(rebaseConflictMessageConstant)

// ErrPushRejected indicates the remote refused a push; the local branch has
// been rolled back one commit before this error surfaces.
var ErrPushRejected = errors.New(pushRejectedMessageConstant)

// GitExecutor exposes the subset of shell execution used by the synchronizer.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Dependencies enumerates external collaborators required by the Service.
type Dependencies struct {
	GitExecutor GitExecutor
	Logger      *zap.Logger
}

// Options configures the remote and branch every operation synchronizes against.
type Options struct {
	RemoteName string
	BranchName string
}

// Service coordinates workspace synchronization through the git client.
type Service struct {
	executor   GitExecutor
	logger     *zap.Logger
	remoteName string
	branchName string
}

// NewService constructs a Service from the provided dependencies and options.
func NewService(dependencies Dependencies, options Options) (*Service, error) {
	if dependencies.GitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}

	trimmedRemoteName := strings.TrimSpace(options.RemoteName)
	if len(trimmedRemoteName) == 0 {
		return nil, ErrRemoteNameRequired
	}

	trimmedBranchName := strings.TrimSpace(options.BranchName)
	if len(trimmedBranchName) == 0 {
		return nil, ErrBranchNameRequired
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		executor:   dependencies.GitExecutor,
		logger:     logger,
		remoteName: trimmedRemoteName,
		branchName: trimmedBranchName,
	}, nil
}

// Pull resets the workspace to a clean state, force-checks-out the tracked
// branch, discards local divergence, and pulls with rebase from the remote.
// A rebase conflict aborts the rebase and fails the operation. Root workspaces
// additionally initialize and update their subrepositories.
func (service *Service) Pull(executionContext context.Context, workspace Workspace) error {
	if resetError := service.resetHard(executionContext, workspace.Path); resetError != nil {
		return fmt.Errorf(resetFailureTemplateConstant, resetError)
	}

	if checkoutError := service.executeGit(executionContext, workspace.Path, gitCheckoutSubcommandConstant, gitForceCheckoutFlagConstant, service.branchName); checkoutError != nil {
		return fmt.Errorf(checkoutFailureTemplateConstant, service.branchName, checkoutError)
	}

	if resetError := service.resetHard(executionContext, workspace.Path); resetError != nil {
		return fmt.Errorf(resetFailureTemplateConstant, resetError)
	}

	if pullError := service.pullWithRebase(executionContext, workspace.Path); pullError != nil {
		service.abortRebase(executionContext, workspace.Path)
		if ClassifyGitError(pullError) == OutcomeConflict {
			return ErrRebaseConflict
		}
		return fmt.Errorf(pullFailureTemplateConstant, pullError)
	}

	if workspace.Kind == RepositoryKindRoot {
		if submoduleError := service.executeGit(
			executionContext,
			workspace.Path,
			gitSubmoduleSubcommandConstant,
			gitSubmoduleUpdateActionConstant,
			gitSubmoduleInitFlagConstant,
			gitSubmoduleRecursiveFlagConstant,
		); submoduleError != nil {
			return fmt.Errorf(submoduleFailureTemplateConstant, submoduleError)
		}
	}

	return nil
}

// Push rebases against the remote immediately before pushing to narrow (not
// eliminate) the race window against concurrent writers. Both a failed
// pre-push rebase and a rejected push roll the local branch back one commit
// before the error surfaces, so local history never silently stays ahead of a
// push that did not land.
func (service *Service) Push(executionContext context.Context, workspace Workspace) error {
	if prePushError := service.pullWithRebase(executionContext, workspace.Path); prePushError != nil {
		service.abortRebase(executionContext, workspace.Path)
		service.rollbackOneCommit(executionContext, workspace.Path)
		if ClassifyGitError(prePushError) == OutcomeConflict {
			return ErrRebaseConflict
		}
		return fmt.Errorf(pullFailureTemplateConstant, prePushError)
	}

	pushError := service.executeGit(executionContext, workspace.Path, gitPushSubcommandConstant, service.remoteName, service.branchName)
	if pushError != nil {
		service.rollbackOneCommit(executionContext, workspace.Path)
		if ClassifyGitError(pushError) == OutcomeRejected {
			return ErrPushRejected
		}
		return fmt.Errorf(pushFailureTemplateConstant, pushError)
	}

	return nil
}

// CommitSubrepoState records the subrepository pointer at subrepoPath in the
// parent repository. Unchanged pointers are a logged no-op, so this operation
// is safe to call unconditionally after every build.
func (service *Service) CommitSubrepoState(executionContext context.Context, subrepoPath string) error {
	cleanedSubrepoPath := filepath.Clean(subrepoPath)
	containingDirectory := filepath.Dir(cleanedSubrepoPath)

	toplevelResult, toplevelError := service.executor.ExecuteGit(executionContext, service.commandDetails(containingDirectory, gitRevParseSubcommandConstant, gitShowToplevelFlagConstant))
	if toplevelError != nil {
		return fmt.Errorf(parentResolveFailureTemplateConstant, cleanedSubrepoPath, toplevelError)
	}
	parentRootPath := strings.TrimSpace(toplevelResult.StandardOutput)

	if checkoutError := service.executeGit(executionContext, parentRootPath, gitCheckoutSubcommandConstant, service.branchName); checkoutError != nil {
		return fmt.Errorf(checkoutFailureTemplateConstant, service.branchName, checkoutError)
	}

	relativeSubrepoPath, relativeError := filepath.Rel(parentRootPath, cleanedSubrepoPath)
	if relativeError != nil {
		return fmt.Errorf(relativePathFailureTemplateConstant, cleanedSubrepoPath, relativeError)
	}

	if stageError := service.executeGit(executionContext, parentRootPath, gitAddSubcommandConstant, relativeSubrepoPath); stageError != nil {
		return fmt.Errorf(stageFailureTemplateConstant, stageError)
	}

	pointerChanged, dryRunError := service.stagedChangesPresent(executionContext, parentRootPath)
	if dryRunError != nil {
		return dryRunError
	}
	if !pointerChanged {
		service.logger.Info(subrepoPointerUnchangedMessageConstant, zap.String(subrepositoryLogFieldNameConstant, cleanedSubrepoPath))
		return nil
	}

	if commitError := service.executeGit(executionContext, parentRootPath, gitCommitSubcommandConstant, gitCommitMessageFlagConstant, subrepoStateCommitMessageConstant); commitError != nil {
		return fmt.Errorf(commitFailureTemplateConstant, commitError)
	}

	parentWorkspace, parentOpenError := OpenWorkspace(parentRootPath)
	if parentOpenError != nil {
		return fmt.Errorf(parentOpenFailureTemplateConstant, parentRootPath, parentOpenError)
	}

	return service.Push(executionContext, parentWorkspace)
}

// CommitAndPush stages every change under the workspace, commits with the
// caller-supplied extra arguments when the tree is dirty, and always pushes
// afterward to surface pending remote changes. Subrepository workspaces
// additionally propagate their pointer into the parent repository.
func (service *Service) CommitAndPush(executionContext context.Context, workspace Workspace, extraCommitArguments []string) error {
	statusResult, statusError := service.executor.ExecuteGit(executionContext, service.commandDetails(workspace.Path, gitStatusSubcommandConstant, gitStatusShortFlagConstant))
	if statusError != nil {
		return fmt.Errorf(statusFailureTemplateConstant, statusError)
	}

	worktreeDirty := len(strings.TrimSpace(statusResult.StandardOutput)) > 0
	if worktreeDirty {
		if stageError := service.executeGit(executionContext, workspace.Path, gitAddSubcommandConstant, gitAddAllFlagConstant); stageError != nil {
			return fmt.Errorf(stageFailureTemplateConstant, stageError)
		}

		commitArguments := append([]string{gitCommitSubcommandConstant}, extraCommitArguments...)
		if commitError := service.executeGit(executionContext, workspace.Path, commitArguments...); commitError != nil {
			return fmt.Errorf(commitFailureTemplateConstant, commitError)
		}
	} else {
		service.logger.Info(nothingToCommitLogMessageConstant, zap.String(workspaceLogFieldNameConstant, workspace.Path))
	}

	if pushError := service.Push(executionContext, workspace); pushError != nil {
		return pushError
	}

	if workspace.IsSubrepository() {
		return service.CommitSubrepoState(executionContext, workspace.Path)
	}

	return nil
}

func (service *Service) stagedChangesPresent(executionContext context.Context, repositoryPath string) (bool, error) {
	dryRunResult, dryRunError := service.executor.ExecuteGit(executionContext, service.commandDetails(
		repositoryPath,
		gitCommitSubcommandConstant,
		gitCommitDryRunFlagConstant,
		gitCommitMessageFlagConstant,
		subrepoStateCommitMessageConstant,
	))

	combinedOutput := dryRunResult.StandardOutput + "\n" + dryRunResult.StandardError
	if dryRunError != nil {
		var failedError execshell.CommandFailedError
		if errors.As(dryRunError, &failedError) {
			combinedOutput = failedError.Result.StandardOutput + "\n" + failedError.Result.StandardError
		} else {
			return false, fmt.Errorf(commitFailureTemplateConstant, dryRunError)
		}
	}

	for _, noChangeMarker := range noStagedChangeOutputMarkers {
		if strings.Contains(combinedOutput, noChangeMarker) {
			return false, nil
		}
	}

	if dryRunError != nil {
		return false, fmt.Errorf(commitFailureTemplateConstant, dryRunError)
	}

	return true, nil
}

func (service *Service) pullWithRebase(executionContext context.Context, repositoryPath string) error {
	return service.executeGit(executionContext, repositoryPath, gitPullSubcommandConstant, gitRebasePullFlagConstant, service.remoteName, service.branchName)
}

func (service *Service) resetHard(executionContext context.Context, repositoryPath string) error {
	return service.executeGit(executionContext, repositoryPath, gitResetSubcommandConstant, gitHardResetFlagConstant)
}

// abortRebase is best-effort cleanup: when no rebase is in progress git exits
// non-zero, which is irrelevant to the caller's failure path.
func (service *Service) abortRebase(executionContext context.Context, repositoryPath string) {
	_ = service.executeGit(executionContext, repositoryPath, gitRebaseSubcommandConstant, gitRebaseAbortFlagConstant)
}

func (service *Service) rollbackOneCommit(executionContext context.Context, repositoryPath string) {
	rollbackError := service.executeGit(executionContext, repositoryPath, gitResetSubcommandConstant, gitHardResetFlagConstant, gitParentOfHeadReferenceConstant)
	if rollbackError == nil {
		service.logger.Warn(rollbackPerformedLogMessageConstant, zap.String(workspaceLogFieldNameConstant, repositoryPath))
	}
}

func (service *Service) executeGit(executionContext context.Context, repositoryPath string, arguments ...string) error {
	_, executionError := service.executor.ExecuteGit(executionContext, service.commandDetails(repositoryPath, arguments...))
	return executionError
}

func (service *Service) commandDetails(repositoryPath string, arguments ...string) execshell.CommandDetails {
	return execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		EnvironmentVariables: map[string]string{
			gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant,
		},
	}
}
