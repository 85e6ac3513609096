package gitsync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	gitMetadataEntryNameConstant             = ".git"
	workspaceMissingMessageConstant          = "workspace root does not exist"
	workspaceNotRepositoryMessageConstant    = "workspace contains no version-control metadata"
	workspaceInspectionErrorTemplateConstant = "failed to inspect workspace %s: %w"
)

// ErrWorkspaceMissing indicates the workspace root directory does not exist.
var ErrWorkspaceMissing = errors.New(workspaceMissingMessageConstant)

// ErrWorkspaceNotRepository indicates the workspace lacks version-control metadata.
var ErrWorkspaceNotRepository = errors.New(workspaceNotRepositoryMessageConstant)

// RepositoryKind distinguishes root checkouts from nested subrepository checkouts.
type RepositoryKind int

const (
	// RepositoryKindRoot identifies a standalone checkout with its own metadata directory.
	RepositoryKindRoot RepositoryKind = iota
	// RepositoryKindSubrepository identifies a nested checkout whose metadata entry is a
	// file pointing at the parent repository's object store.
	RepositoryKindSubrepository
)

// Workspace is a handle to a version-controlled directory tree. The repository
// kind is computed once at open time rather than re-sniffed per operation.
type Workspace struct {
	Path string
	Kind RepositoryKind
}

// OpenWorkspace resolves a directory into a Workspace handle, classifying it as a
// root checkout or a subrepository by the shape of its metadata entry.
func OpenWorkspace(workspacePath string) (Workspace, error) {
	cleanedPath := filepath.Clean(workspacePath)

	if _, statError := os.Stat(cleanedPath); statError != nil {
		if os.IsNotExist(statError) {
			return Workspace{}, fmt.Errorf(workspaceInspectionErrorTemplateConstant, cleanedPath, ErrWorkspaceMissing)
		}
		return Workspace{}, fmt.Errorf(workspaceInspectionErrorTemplateConstant, cleanedPath, statError)
	}

	metadataPath := filepath.Join(cleanedPath, gitMetadataEntryNameConstant)
	metadataInfo, metadataStatError := os.Stat(metadataPath)
	if metadataStatError != nil {
		if os.IsNotExist(metadataStatError) {
			return Workspace{}, fmt.Errorf(workspaceInspectionErrorTemplateConstant, cleanedPath, ErrWorkspaceNotRepository)
		}
		return Workspace{}, fmt.Errorf(workspaceInspectionErrorTemplateConstant, cleanedPath, metadataStatError)
	}

	repositoryKind := RepositoryKindRoot
	if !metadataInfo.IsDir() {
		repositoryKind = RepositoryKindSubrepository
	}

	return Workspace{Path: cleanedPath, Kind: repositoryKind}, nil
}

// IsSubrepository reports whether the workspace is a nested checkout.
func (workspace Workspace) IsSubrepository() bool {
	return workspace.Kind == RepositoryKindSubrepository
}
