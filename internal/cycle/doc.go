// Package cycle runs a declarative synchronization cycle: an ordered list of
// steps loaded from YAML that pull workspaces, swap generated content into
// place, provision interpreter sandboxes, and commit results back. The first
// failing step terminates the whole cycle.
package cycle
