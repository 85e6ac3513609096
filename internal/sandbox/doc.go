// Package sandbox provisions and activates isolated interpreter environments
// for build steps. A sandbox is created at most once per process; repeated
// activation is a logged no-op once the isolation marker is present.
package sandbox
