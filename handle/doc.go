// Package handle provides a reference-counted handle table.
//
// A Table is an arena of entries addressed by small integer handles. Each
// entry carries an explicit reference count: Create starts it at one, Retain
// adds a holder, and Release removes one. The entry is freed only when the
// count reaches zero; nothing is reclaimed by the garbage collector.
//
// # Handles
//
// Handle 0 is reserved. Freed handles are reused by later Create calls.
// Adopt stores an entry under a handle chosen by a remote peer, which is how
// the native side of a bridge mirrors ids assigned by the script side.
//
// # Observers
//
// Observers receive EventCreated, EventRetained, EventReleased and
// EventDropped notifications outside the table lock.
//
//	t := handle.New()
//	t.Subscribe(handle.ObserverFunc(func(e handle.Event) {
//	    log.Printf("%s %d refs=%d", e.Type, e.Handle, e.Refs)
//	}))
//	h, _ := t.Create("Contoso.Widget", w)
//	t.Retain(h)  // refs=2
//	t.Release(h) // refs=1
//	t.Release(h) // dropped
//
// # Thread Safety
//
// Table is safe for concurrent use.
package handle
