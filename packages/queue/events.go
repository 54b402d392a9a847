package queue

// Observer receives coordinator lifecycle events. Implementations must be
// safe for concurrent use.
type Observer interface {
	On(event EventData)
}

// Event is a coordinator event type.
type Event int

const (
	// EventLocked is emitted when a caller becomes the owner of a key.
	EventLocked Event = iota
	// EventJoined is emitted when a caller joins an in-flight key as a waiter.
	EventJoined
	// EventReleased is emitted when the owner's outcome is broadcast.
	EventReleased
	// EventTimedOut is emitted when a waiter gives up.
	EventTimedOut
	// EventCanceled is emitted when a waiter's context ends before release.
	EventCanceled
	// EventCleared is emitted for every key dropped by Clear.
	EventCleared
)

func (e Event) String() string {
	switch e {
	case EventLocked:
		return "locked"
	case EventJoined:
		return "joined"
	case EventReleased:
		return "released"
	case EventTimedOut:
		return "timed_out"
	case EventCanceled:
		return "canceled"
	case EventCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

// EventData carries the details of a coordinator event. Waiters is the
// number of waiters registered on the key after the event, except for
// EventReleased where it is the number of waiters notified and EventCleared
// where it is the number of waiters abandoned.
type EventData struct {
	Event   Event
	Key     string
	Waiters int
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(EventData)

func (f ObserverFunc) On(event EventData) {
	f(event)
}
