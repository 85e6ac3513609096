// Package cli constructs the cisync command-line interface, wiring the Cobra
// command hierarchy, configuration loader, structured logging, and the
// process-wide deferred-deletion registry. It exposes helpers to build
// reusable application instances and to execute the default command set.
package cli
