package sandbox

import (
	"io/fs"
	"os"
	"os/exec"
)

// ProcessEnvironment exposes the environment-variable and lookup operations
// the provisioner mutates. Activation only ever changes the current process.
type ProcessEnvironment interface {
	Get(key string) string
	Set(key string, value string) error
	LookPath(executableName string) (string, error)
}

// OSProcessEnvironment implements ProcessEnvironment with the real process
// environment.
type OSProcessEnvironment struct{}

// NewOSProcessEnvironment constructs an operating-system backed ProcessEnvironment.
func NewOSProcessEnvironment() OSProcessEnvironment {
	return OSProcessEnvironment{}
}

// Get reads an environment variable.
func (OSProcessEnvironment) Get(key string) string {
	return os.Getenv(key)
}

// Set writes an environment variable for the current process.
func (OSProcessEnvironment) Set(key string, value string) error {
	return os.Setenv(key, value)
}

// LookPath resolves an executable name against PATH.
func (OSProcessEnvironment) LookPath(executableName string) (string, error) {
	return exec.LookPath(executableName)
}

// FileSystem exposes the filesystem operations sandbox provisioning requires.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Symlink(oldName string, newName string) error
}

// OSFileSystem implements FileSystem using operating-system primitives.
type OSFileSystem struct{}

// NewOSFileSystem constructs an operating-system backed FileSystem.
func NewOSFileSystem() OSFileSystem {
	return OSFileSystem{}
}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Symlink creates a symbolic link.
func (OSFileSystem) Symlink(oldName string, newName string) error {
	return os.Symlink(oldName, newName)
}
