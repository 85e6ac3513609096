package swap

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	pruneReadFailureLogConstant    = "failed to list temp root for pruning"
	pruneInspectFailureLogConstant = "failed to inspect temp entry"
	pruneRemovedEntryLogConstant   = "pruned stale temp entry"
	pruneRootLogFieldConstant      = "temp_root"
	pruneEntryLogFieldConstant     = "entry"
)

// Pruner removes stale entries under a temp root at startup. Pruning is
// best-effort: no failure here is ever surfaced to a caller.
type Pruner struct {
	fileSystem FileSystem
	clock      Clock
	logger     *zap.Logger
}

// NewPruner constructs a Pruner from the provided collaborators, substituting
// operating-system defaults for nil values.
func NewPruner(fileSystem FileSystem, clock Clock, logger *zap.Logger) *Pruner {
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{fileSystem: fileSystem, clock: clock, logger: logger}
}

// PruneStale removes every entry under tempRoot whose modification time is
// older than the retention window.
func (pruner *Pruner) PruneStale(tempRoot string, retentionWindow time.Duration) {
	directoryEntries, readError := pruner.fileSystem.ReadDir(tempRoot)
	if readError != nil {
		pruner.logger.Debug(pruneReadFailureLogConstant, zap.String(pruneRootLogFieldConstant, tempRoot), zap.Error(readError))
		return
	}

	expirationCutoff := pruner.clock.Now().Add(-retentionWindow)
	for _, directoryEntry := range directoryEntries {
		entryPath := filepath.Join(tempRoot, directoryEntry.Name())
		entryInfo, infoError := directoryEntry.Info()
		if infoError != nil {
			pruner.logger.Debug(pruneInspectFailureLogConstant, zap.String(pruneEntryLogFieldConstant, entryPath), zap.Error(infoError))
			continue
		}
		if entryInfo.ModTime().After(expirationCutoff) {
			continue
		}
		if removalError := pruner.fileSystem.RemoveAll(entryPath); removalError == nil {
			pruner.logger.Debug(pruneRemovedEntryLogConstant, zap.String(pruneEntryLogFieldConstant, entryPath))
		}
	}
}
