package swap

import (
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

const (
	removalToolNameConstant        = "rm"
	removalRecursiveForceConstant  = "-rf"
	removalEndOfOptionsConstant    = "--"
	removalStartFailedLogConstant  = "failed to start deferred removal"
	removalScheduledLogConstant    = "scheduled deferred removal"
	registeredPathLogFieldConstant = "path"
)

// RemovalStarter begins removing a path. Implementations are free to detach
// from the calling process; failures are never surfaced to callers.
type RemovalStarter func(path string) error

// CleanupRegistry collects directory paths whose deletion is deferred to
// process exit. Paths are registered only after the logical swap that
// displaced them has completed, and the registry drains exactly once.
type CleanupRegistry struct {
	mutex          sync.Mutex
	flushGuard     sync.Once
	pendingPaths   []string
	removalStarter RemovalStarter
	logger         *zap.Logger
}

// NewCleanupRegistry constructs a registry that removes paths with a detached
// operating-system process so deletion never blocks process exit.
func NewCleanupRegistry(logger *zap.Logger) *CleanupRegistry {
	return NewCleanupRegistryWithRemover(logger, startDetachedRemoval)
}

// NewCleanupRegistryWithRemover constructs a registry using the provided removal starter.
func NewCleanupRegistryWithRemover(logger *zap.Logger, removalStarter RemovalStarter) *CleanupRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if removalStarter == nil {
		removalStarter = startDetachedRemoval
	}
	return &CleanupRegistry{removalStarter: removalStarter, logger: logger}
}

// SetLogger swaps the logger used for removal diagnostics. Callers that
// construct the registry before logging is configured update it here.
func (registry *CleanupRegistry) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.logger = logger
}

// Register queues a path for removal at process exit.
func (registry *CleanupRegistry) Register(path string) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.pendingPaths = append(registry.pendingPaths, path)
}

// PendingPaths returns a snapshot of the paths awaiting removal.
func (registry *CleanupRegistry) PendingPaths() []string {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	return append([]string{}, registry.pendingPaths...)
}

// FlushAll starts removal of every registered path. Only the first call has
// any effect; removal failures are logged and never propagated.
func (registry *CleanupRegistry) FlushAll() {
	registry.flushGuard.Do(func() {
		registry.mutex.Lock()
		pathsToRemove := append([]string{}, registry.pendingPaths...)
		registryLogger := registry.logger
		registry.mutex.Unlock()

		for _, pendingPath := range pathsToRemove {
			if removalError := registry.removalStarter(pendingPath); removalError != nil {
				registryLogger.Debug(removalStartFailedLogConstant, zap.String(registeredPathLogFieldConstant, pendingPath), zap.Error(removalError))
				continue
			}
			registryLogger.Debug(removalScheduledLogConstant, zap.String(registeredPathLogFieldConstant, pendingPath))
		}
	})
}

// startDetachedRemoval launches a recursive removal that is allowed to outlive
// the calling process.
func startDetachedRemoval(path string) error {
	removalCommand := exec.Command(removalToolNameConstant, removalRecursiveForceConstant, removalEndOfOptionsConstant, path)
	if startError := removalCommand.Start(); startError != nil {
		return startError
	}
	return removalCommand.Process.Release()
}
