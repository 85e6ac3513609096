// Package swap replaces directories atomically and defers deletion of the
// displaced content to process exit.
//
// A replacement is two renames: the old target is parked at a staging path,
// the new tree is renamed into place, and the staging path is handed to a
// process-scoped CleanupRegistry that removes parked trees exactly once when
// the process exits. Readers therefore observe either the fully-old or
// fully-new tree and the caller never waits on deletion I/O.
package swap
