package queue

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyLocked is returned by Lock when the key already has a pending entry.
	ErrAlreadyLocked = errors.New("resource already locked")

	// ErrNotLocked is returned by WaitFor when there is nothing to wait on.
	ErrNotLocked = errors.New("no ongoing request")

	// ErrTimeout is the sentinel wrapped by TimeoutError.
	ErrTimeout = errors.New("timeout exceeded while waiting for request to finish")
)

// TimeoutError reports a single waiter whose budget ran out.
type TimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s for %s (after %s)", ErrTimeout.Error(), e.Key, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
