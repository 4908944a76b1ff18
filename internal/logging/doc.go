// Package logging provides opt-in file-based logging with rotation for
// Treedex. When debug logging is enabled, structured JSON logs are written
// to ~/.treedex/logs/ for debugging and troubleshooting.
//
// By default logging is minimal and goes to stderr only.
package logging
