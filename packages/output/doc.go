// Package output provides formatters for displaying fetch runs and relay
// replies.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
package output
