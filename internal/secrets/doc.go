// Package secrets materializes an encrypted credential bundle on demand and
// delivers operator-facing alerts to a chat webhook and the process log.
package secrets
