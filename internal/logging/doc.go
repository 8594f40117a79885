// Package logging provides file-based logging with rotation for the leann CLI.
// Structured JSON logs are written to ~/.leann/logs/leann.log for debugging
// and troubleshooting; by default the same JSON entries are also written to stderr.
package logging
