// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner for
// default process execution, and defines abstractions used throughout cisync
// to run git, curl, and interpreter binaries in a testable manner.
package execshell
