package handle

import (
	"errors"
	"sync"
)

var (
	ErrClosed        = errors.New("handle table closed")
	ErrInvalidHandle = errors.New("invalid handle")
	ErrInUse         = errors.New("handle already in use")
	ErrOutOfRange    = errors.New("handle out of range")
)

// MaxAdoptGap bounds how far past the highest allocated handle Adopt may
// reach. Peers allocate densely from a free list, so a larger jump is never
// a real id.
const MaxAdoptGap = 1024

// Table is an arena of reference-counted entries. Entries are never collected
// implicitly: each one lives until Release drops its count to zero or the
// table is closed.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	class string
	refs  int32
	valid bool
}

// New creates an empty table.
func New() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Create stores a value with a reference count of one and returns its handle.
func (t *Table) Create(class string, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	e := entry{
		class: class,
		value: value,
		refs:  1,
		valid: true,
	}

	var h Handle
	if len(t.freeList) > 0 {
		h = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Class: class, Value: value, Refs: 1})
	return h, nil
}

// Adopt stores a value under a handle assigned elsewhere, such as the id a
// remote peer chose. The entry starts with a reference count of one. Handles
// more than MaxAdoptGap past the table's end are rejected with ErrOutOfRange.
func (t *Table) Adopt(h Handle, class string, value any) error {
	if h == 0 {
		return ErrInvalidHandle
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if int(h) > len(t.entries)+MaxAdoptGap {
		t.mu.Unlock()
		return ErrOutOfRange
	}
	for int(h) > len(t.entries) {
		t.entries = append(t.entries, entry{})
	}
	if t.entries[h-1].valid {
		t.mu.Unlock()
		return ErrInUse
	}
	for i, f := range t.freeList {
		if f == h {
			t.freeList = append(t.freeList[:i], t.freeList[i+1:]...)
			break
		}
	}
	t.entries[h-1] = entry{class: class, value: value, refs: 1, valid: true}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Class: class, Value: value, Refs: 1})
	return nil
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Has reports whether a handle is live.
func (t *Table) Has(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.lookup(h)
	return ok
}

// Class returns the class name recorded for a handle.
func (t *Table) Class(h Handle) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return "", false
	}
	return e.class, true
}

// Refs returns the current reference count of a handle.
func (t *Table) Refs(h Handle) (int32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.lookup(h)
	if !ok {
		return 0, false
	}
	return e.refs, true
}

// Replace swaps the value stored under a live handle.
func (t *Table) Replace(h Handle, value any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == 0 || int(h) > len(t.entries) || !t.entries[h-1].valid {
		return false
	}
	t.entries[h-1].value = value
	return true
}

// Retain adds a holder and returns the new count.
func (t *Table) Retain(h Handle) (int32, error) {
	t.mu.Lock()
	if h == 0 || int(h) > len(t.entries) || !t.entries[h-1].valid {
		t.mu.Unlock()
		return 0, ErrInvalidHandle
	}
	e := &t.entries[h-1]
	e.refs++
	ev := Event{Type: EventRetained, Handle: h, Class: e.class, Value: e.value, Refs: e.refs}
	t.mu.Unlock()

	t.notify(ev)
	return ev.Refs, nil
}

// Release removes a holder. When the count reaches zero the entry is freed,
// its value is dropped, and dropped is true. Releasing a freed or unknown
// handle returns ErrInvalidHandle; the count never goes negative.
func (t *Table) Release(h Handle) (refs int32, dropped bool, err error) {
	t.mu.Lock()
	if h == 0 || int(h) > len(t.entries) || !t.entries[h-1].valid {
		t.mu.Unlock()
		return 0, false, ErrInvalidHandle
	}
	e := &t.entries[h-1]
	e.refs--
	ev := Event{Type: EventReleased, Handle: h, Class: e.class, Value: e.value, Refs: e.refs}
	if e.refs > 0 {
		t.mu.Unlock()
		t.notify(ev)
		return ev.Refs, false, nil
	}

	value := e.value
	*e = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	ev.Type = EventDropped
	t.notify(ev)
	return 0, true, nil
}

// Each iterates over live entries in handle order until fn returns false.
func (t *Table) Each(fn func(h Handle, class string, value any) bool) {
	t.mu.RLock()
	type item struct {
		value any
		class string
		h     Handle
	}
	items := make([]item, 0, len(t.entries))
	for i, e := range t.entries {
		if e.valid {
			items = append(items, item{h: Handle(i + 1), class: e.class, value: e.value})
		}
	}
	t.mu.RUnlock()

	for _, it := range items {
		if !fn(it.h, it.class, it.value) {
			return
		}
	}
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, e := range t.entries {
		if e.valid {
			n++
		}
	}
	return n
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. o must be comparable, so ObserverFunc
// values cannot be unsubscribed.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close drops every live entry regardless of its count and rejects further
// creation. Values implementing Dropper are dropped.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var dropped []Event
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid {
			continue
		}
		dropped = append(dropped, Event{Type: EventDropped, Handle: Handle(i + 1), Class: e.class, Value: e.value})
		*e = entry{}
	}
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for _, ev := range dropped {
		if d, ok := ev.Value.(Dropper); ok {
			d.Drop()
		}
		t.notify(ev)
	}
	return nil
}

func (t *Table) lookup(h Handle) (entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return entry{}, false
	}
	e := t.entries[h-1]
	return e, e.valid
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
