// Package objtable implements the two independent object directories of
// spec.md §3/§4.3: the local scripting table L and the remote program
// table R, including R's batched pending-free queue.
package objtable

import "sync"

// Local is table L: id -> scripting object handle. Ids are dense
// non-negative integers chosen by the plugin side when it first exports
// a handle across the wire (spec.md §3). The handle type is opaque to
// this package; the scripting-host adapter is the only code that
// interprets it.
type Local struct {
	mu      sync.Mutex
	handles map[int32]any
	nextID  int32
}

// NewLocal returns an empty Local table.
func NewLocal() *Local {
	return &Local{handles: make(map[int32]any)}
}

// Add assigns a fresh id to handle and returns it. A fresh id is
// returned on every call even for the same underlying handle: aliasing
// across ids is permitted, each slot is an independent lease (spec.md
// §4.3).
func (l *Local) Add(handle any) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handles[id] = handle
	return id
}

// Get looks up the handle bound to id.
func (l *Local) Get(id int32) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.handles[id]
	return h, ok
}

// Free drops the plugin-side strong reference for id. It is a no-op if
// id is not present (a peer may legitimately name an id more than once
// across a session's lifetime only if it was re-exported; double-free of
// an id the peer never re-received is a protocol error the caller should
// detect upstream).
func (l *Local) Free(id int32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.handles, id)
}

// Len reports the number of live entries, for diagnostics.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.handles)
}
