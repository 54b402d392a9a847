// Package http provides the HTTP client used by extbridge.
//
// It wraps the standard library's http package with additional features:
//   - Query composition with ordered, array-aware parameters
//   - Header composition from an auth provider, an origin marker and caller headers
//   - Opt-in de-duplication of concurrent requests for the same URL
//   - Response classification into typed API errors
//   - JSON and raw stream decoding
//   - Client-side rate limiting
package http
