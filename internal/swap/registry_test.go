package swap

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegisterAccumulatesPendingPaths(t *testing.T) {
	registry := NewCleanupRegistry(nil)

	registry.Register("/workspace/site.to-delete")
	registry.Register("/workspace/docs.to-delete")

	require.Equal(t, []string{"/workspace/site.to-delete", "/workspace/docs.to-delete"}, registry.PendingPaths())
}

func TestPendingPathsReturnsSnapshot(t *testing.T) {
	registry := NewCleanupRegistry(nil)
	registry.Register("/workspace/site.to-delete")

	snapshot := registry.PendingPaths()
	snapshot[0] = "/mutated"

	require.Equal(t, []string{"/workspace/site.to-delete"}, registry.PendingPaths())
}

func TestFlushAllStartsRemovalForEveryRegisteredPath(t *testing.T) {
	remover := &recordingRemover{}
	registry := NewCleanupRegistryWithRemover(nil, remover.start)
	registry.Register("/workspace/site.to-delete")
	registry.Register("/workspace/docs.to-delete")

	registry.FlushAll()

	require.Equal(t, []string{"/workspace/site.to-delete", "/workspace/docs.to-delete"}, remover.removedPaths)
}

func TestFlushAllRunsExactlyOnce(t *testing.T) {
	remover := &recordingRemover{}
	registry := NewCleanupRegistryWithRemover(nil, remover.start)
	registry.Register("/workspace/site.to-delete")

	var flushGroup sync.WaitGroup
	for flushIndex := 0; flushIndex < 4; flushIndex++ {
		flushGroup.Add(1)
		go func() {
			defer flushGroup.Done()
			registry.FlushAll()
		}()
	}
	flushGroup.Wait()

	require.Equal(t, []string{"/workspace/site.to-delete"}, remover.removedPaths)
}

func TestStartDetachedRemovalRemovesDashPrefixedNames(t *testing.T) {
	parentDirectory := t.TempDir()
	originalDirectory, workingDirectoryError := os.Getwd()
	require.NoError(t, workingDirectoryError)
	require.NoError(t, os.Chdir(parentDirectory))
	t.Cleanup(func() { _ = os.Chdir(originalDirectory) })

	dashPrefixedName := "-stale.to-delete"
	require.NoError(t, os.Mkdir(dashPrefixedName, 0o755))

	require.NoError(t, startDetachedRemoval(dashPrefixedName))

	require.Eventually(t, func() bool {
		_, statError := os.Stat(dashPrefixedName)
		return errors.Is(statError, fs.ErrNotExist)
	}, 5*time.Second, 25*time.Millisecond)
}

func TestFlushAllLogsRemovalFailuresWithoutPropagating(t *testing.T) {
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	remover := &recordingRemover{removalError: errors.New("spawn failed")}
	registry := NewCleanupRegistryWithRemover(zap.New(observedCore), remover.start)
	registry.Register("/workspace/site.to-delete")

	registry.FlushAll()

	failureEntries := observedLogs.FilterMessage(removalStartFailedLogConstant).All()
	require.Len(t, failureEntries, 1)
}
