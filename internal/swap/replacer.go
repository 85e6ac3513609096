package swap

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"
)

const (
	stagingPathSuffixConstant = ".to-delete"

	fileSystemMissingMessageConstant      = "file system not configured"
	registryMissingMessageConstant        = "cleanup registry not configured"
	sourcePathRequiredMessageConstant     = "source path must be provided"
	targetPathRequiredMessageConstant     = "target path must be provided"
	parkTargetFailureTemplateConstant     = "failed to park existing target %s: %w"
	activateSourceFailureTemplateConstant = "failed to move %s into place: %w"
	targetInspectFailureTemplateConstant  = "failed to inspect target %s: %w"

	staleStagingRemovedLogConstant  = "removed stale staging directory"
	targetRestoredLogConstant       = "restored previous target after failed activation"
	replacementCompletedLogConstant = "directory replacement completed"
	stagingPathLogFieldConstant     = "staging_path"
	targetPathLogFieldConstant      = "target_path"
)

// ErrFileSystemNotConfigured indicates the file system dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrCleanupRegistryNotConfigured indicates the registry dependency was missing.
var ErrCleanupRegistryNotConfigured = errors.New(registryMissingMessageConstant)

// ErrSourcePathRequired indicates the source path option was empty.
var ErrSourcePathRequired = errors.New(sourcePathRequiredMessageConstant)

// ErrTargetPathRequired indicates the target path option was empty.
var ErrTargetPathRequired = errors.New(targetPathRequiredMessageConstant)

// Dependencies enumerates external collaborators required by the Replacer.
type Dependencies struct {
	FileSystem FileSystem
	Registry   *CleanupRegistry
	Logger     *zap.Logger
}

// Replacer swaps directories with rename operations and defers deletion of
// displaced content to the cleanup registry.
type Replacer struct {
	fileSystem FileSystem
	registry   *CleanupRegistry
	logger     *zap.Logger
}

// NewReplacer constructs a Replacer from the provided dependencies.
func NewReplacer(dependencies Dependencies) (*Replacer, error) {
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.Registry == nil {
		return nil, ErrCleanupRegistryNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replacer{fileSystem: dependencies.FileSystem, registry: dependencies.Registry, logger: logger}, nil
}

// Replace moves the tree at sourcePath to targetPath in a single rename,
// parking any existing target at a staging path whose deletion is deferred to
// process exit. When the activation rename fails after the target was already
// parked, the previous target is restored before the error returns.
func (replacer *Replacer) Replace(sourcePath string, targetPath string, stagingPathOverride string) error {
	trimmedSourcePath := strings.TrimSpace(sourcePath)
	if len(trimmedSourcePath) == 0 {
		return ErrSourcePathRequired
	}
	trimmedTargetPath := strings.TrimSpace(targetPath)
	if len(trimmedTargetPath) == 0 {
		return ErrTargetPathRequired
	}

	stagingPath := strings.TrimSpace(stagingPathOverride)
	if len(stagingPath) == 0 {
		stagingPath = trimmedTargetPath + stagingPathSuffixConstant
	}

	// A staging directory left by an interrupted prior run would make the
	// park rename fail, so it is cleared synchronously first.
	if removalError := replacer.fileSystem.RemoveAll(stagingPath); removalError == nil {
		replacer.logger.Debug(staleStagingRemovedLogConstant, zap.String(stagingPathLogFieldConstant, stagingPath))
	}

	targetExists, inspectError := replacer.pathExists(trimmedTargetPath)
	if inspectError != nil {
		return fmt.Errorf(targetInspectFailureTemplateConstant, trimmedTargetPath, inspectError)
	}

	if targetExists {
		if parkError := replacer.fileSystem.Rename(trimmedTargetPath, stagingPath); parkError != nil {
			return fmt.Errorf(parkTargetFailureTemplateConstant, trimmedTargetPath, parkError)
		}
	}

	if activateError := replacer.fileSystem.Rename(trimmedSourcePath, trimmedTargetPath); activateError != nil {
		if targetExists {
			if restoreError := replacer.fileSystem.Rename(stagingPath, trimmedTargetPath); restoreError == nil {
				replacer.logger.Warn(targetRestoredLogConstant, zap.String(targetPathLogFieldConstant, trimmedTargetPath))
			}
		}
		return fmt.Errorf(activateSourceFailureTemplateConstant, trimmedSourcePath, activateError)
	}

	if targetExists {
		replacer.registry.Register(stagingPath)
	}

	replacer.logger.Info(
		replacementCompletedLogConstant,
		zap.String(targetPathLogFieldConstant, trimmedTargetPath),
		zap.String(stagingPathLogFieldConstant, stagingPath),
	)

	return nil
}

func (replacer *Replacer) pathExists(path string) (bool, error) {
	_, statError := replacer.fileSystem.Stat(path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, fs.ErrNotExist) {
		return false, nil
	}
	return false, statError
}
