package handle

// Handle is an opaque reference to a live entry in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventRetained
	EventReleased
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventRetained:
		return "retained"
	case EventReleased:
		return "released"
	case EventDropped:
		return "dropped"
	}
	return "unknown"
}

// Event describes a handle lifecycle change. Refs is the count after the change.
type Event struct {
	Value  any
	Class  string
	Handle Handle
	Refs   int32
	Type   EventType
}

// Observer receives handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnHandleEvent calls f(e).
func (f ObserverFunc) OnHandleEvent(e Event) {
	f(e)
}

// Dropper is optionally implemented by values that need cleanup when their
// last reference is released.
type Dropper interface {
	Drop()
}
