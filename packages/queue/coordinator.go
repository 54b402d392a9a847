package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout is how long a waiter waits for the owner when no budget is given.
const DefaultTimeout = 5 * time.Second

type result[T any] struct {
	value T
	err   error
}

type waiter[T any] struct {
	done chan result[T]
	// claimed is set under the coordinator lock once Release has taken
	// this waiter, so a racing timeout knows a result is on its way.
	claimed bool
}

// entry is only ever created by an owner, so an entry without waiters is
// still held until the owner releases it.
type entry[T any] struct {
	waiters []*waiter[T]
}

// Coordinator is a keyed lock with waiter fan-out. The zero value is not
// usable; create one with New.
type Coordinator[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]

	clone    func(T) T
	timeout  time.Duration
	observer Observer
	logger   logrus.FieldLogger
}

// Option configures a Coordinator.
type Option func(*settings)

type settings struct {
	timeout  time.Duration
	observer Observer
	logger   logrus.FieldLogger
}

// WithTimeout sets the default waiter budget. Zero or negative disables
// the timeout, leaving only context cancellation.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithObserver registers an observer for lifecycle events.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		s.observer = o
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// New creates a Coordinator. clone is applied to the released value once per
// waiter so that no two waiters share mutable state; nil means values are
// handed out as-is.
func New[T any](clone func(T) T, opts ...Option) *Coordinator[T] {
	s := &settings{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	if clone == nil {
		clone = func(v T) T { return v }
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.logger = l
	}

	return &Coordinator[T]{
		entries:  make(map[string]*entry[T]),
		clone:    clone,
		timeout:  s.timeout,
		observer: s.observer,
		logger:   s.logger,
	}
}

// HasOngoing reports whether a pending entry exists for key.
func (c *Coordinator[T]) HasOngoing(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Len returns the number of keys with a pending entry.
func (c *Coordinator[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Waiters returns the number of waiters registered on key.
func (c *Coordinator[T]) Waiters(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return len(e.waiters)
	}
	return 0
}

// Lock makes the caller the owner of key. It fails with ErrAlreadyLocked when
// an entry already exists.
func (c *Coordinator[T]) Lock(key string) error {
	if !c.TryLock(key) {
		return ErrAlreadyLocked
	}
	return nil
}

// TryLock atomically creates the entry for key if none exists and reports
// whether the caller became the owner.
func (c *Coordinator[T]) TryLock(key string) bool {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = &entry[T]{}
	c.mu.Unlock()

	c.emit(EventLocked, key, 0)
	c.logger.WithField("key", key).Debug("resource locked")
	return true
}

// AcquireOrWait either makes the caller the owner of key, returning
// owner=true immediately, or registers it as a waiter and blocks until the
// owner releases, the timeout elapses or ctx ends. The check and the
// registration happen under one lock, so a release can never slip between
// them.
func (c *Coordinator[T]) AcquireOrWait(ctx context.Context, key string, timeout time.Duration) (value T, owner bool, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.entries[key] = &entry[T]{}
		c.mu.Unlock()

		c.emit(EventLocked, key, 0)
		c.logger.WithField("key", key).Debug("resource locked")
		return value, true, nil
	}
	w, n := c.join(e)
	c.mu.Unlock()

	c.joined(key, n)
	value, err = c.wait(ctx, key, w, timeout)
	return value, false, err
}

// WaitFor registers the caller as a waiter on key and blocks until the owner
// releases, the timeout elapses or ctx ends. A timeout of zero uses the
// coordinator default. It fails with ErrNotLocked if key has no entry.
//
// A waiter that gives up leaves the entry in place. An entry goes away only
// when it has no waiters and no owner, and the owner holds it until Release.
func (c *Coordinator[T]) WaitFor(ctx context.Context, key string, timeout time.Duration) (T, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		var zero T
		return zero, ErrNotLocked
	}
	w, n := c.join(e)
	c.mu.Unlock()

	c.joined(key, n)
	return c.wait(ctx, key, w, timeout)
}

// join must be called with c.mu held.
func (c *Coordinator[T]) join(e *entry[T]) (*waiter[T], int) {
	w := &waiter[T]{done: make(chan result[T], 1)}
	e.waiters = append(e.waiters, w)
	return w, len(e.waiters)
}

func (c *Coordinator[T]) joined(key string, n int) {
	c.emit(EventJoined, key, n)
	c.logger.WithFields(logrus.Fields{"key": key, "waiters": n}).Debug("waiting for ongoing request")
}

func (c *Coordinator[T]) wait(ctx context.Context, key string, w *waiter[T], timeout time.Duration) (T, error) {
	if timeout == 0 {
		timeout = c.timeout
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-w.done:
		return r.value, r.err
	case <-expired:
		if r, ok := c.abandon(key, w); ok {
			return r.value, r.err
		}
		c.logger.WithFields(logrus.Fields{"key": key, "timeout": timeout}).Debug("waiter timed out")
		c.emit(EventTimedOut, key, c.Waiters(key))
		var zero T
		return zero, &TimeoutError{Key: key, Timeout: timeout}
	case <-ctx.Done():
		if r, ok := c.abandon(key, w); ok {
			return r.value, r.err
		}
		c.emit(EventCanceled, key, c.Waiters(key))
		var zero T
		return zero, ctx.Err()
	}
}

// abandon removes w from key's waiter list. When Release already claimed the
// waiter, the pending result is returned instead with ok=true.
func (c *Coordinator[T]) abandon(key string, w *waiter[T]) (result[T], bool) {
	c.mu.Lock()
	if w.claimed {
		c.mu.Unlock()
		// Release sends without holding the lock; the buffered channel
		// guarantees the value arrives.
		return <-w.done, true
	}

	if e, ok := c.entries[key]; ok {
		for i, other := range e.waiters {
			if other == w {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	return result[T]{}, false
}

// Release delivers the outcome to every registered waiter, each receiving its
// own clone, and deletes the entry for key. Releasing a key with no entry is
// a no-op.
func (c *Coordinator[T]) Release(key string, value T, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.entries, key)

	waiters := make([]*waiter[T], len(e.waiters))
	copy(waiters, e.waiters)
	for _, w := range waiters {
		w.claimed = true
	}
	c.mu.Unlock()

	for _, w := range waiters {
		w.done <- result[T]{value: c.clone(value), err: err}
	}

	c.emit(EventReleased, key, len(waiters))
	c.logger.WithFields(logrus.Fields{"key": key, "waiters": len(waiters)}).Debug("resource released")
}

// Clear drops every entry and emits EventCleared per dropped key. Registered
// waiters are not notified; they fail on their own timeout or context.
// Intended for tests and resets only.
func (c *Coordinator[T]) Clear() {
	c.mu.Lock()
	dropped := c.entries
	c.entries = make(map[string]*entry[T])
	c.mu.Unlock()

	for key, e := range dropped {
		c.emit(EventCleared, key, len(e.waiters))
	}
}

func (c *Coordinator[T]) emit(event Event, key string, waiters int) {
	if c.observer != nil {
		c.observer.On(EventData{Event: event, Key: key, Waiters: waiters})
	}
}
