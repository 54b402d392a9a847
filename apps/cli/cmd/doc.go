// Package cmd implements the extbridge CLI commands using Cobra.
//
// Available commands:
//   - fetch: Issue concurrent requests through the de-duplicating client
//   - serve: Run the background message relay over HTTP
//   - send: Send a message to a running relay
//   - version: Show extbridge version information
package cmd
