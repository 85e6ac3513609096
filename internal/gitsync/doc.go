// Package gitsync keeps CI workspaces synchronized with their remote branch.
//
// It drives the git client through execshell with a strict
// reset-pull-rebase-push discipline: pulls always start from a clean tree,
// failed rebases are aborted rather than left in place, and failed pushes
// roll the local branch back so it never silently diverges from the remote.
// Subrepository pointer changes are propagated into the parent repository as
// automatic commits.
package gitsync
