// Package env loads .env files and interpolates environment references
// in configuration values.
//
// It provides functionality for:
//   - Loading environment files (.env, .env.local, etc.)
//   - Exporting loaded values to the process environment
//   - Interpolating {{$VAR}} references from the environment
package env
