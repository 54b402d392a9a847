// Package queue coordinates concurrent requests for the same resource.
//
// A Coordinator tracks, per resource key, whether an owning operation is in
// flight and which callers are waiting for its outcome. The first caller for a
// key becomes the owner and performs the work; every caller that arrives while
// the owner is outstanding joins as a waiter and receives a copy of the owner's
// outcome when it is released:
//   - At most one owner exists per key at any time
//   - Each waiter is notified exactly once, or fails alone on timeout
//   - Failures are broadcast the same way as successes
package queue
