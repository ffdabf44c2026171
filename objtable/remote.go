package objtable

import "sync"

// Wrapper is a local, reference-counted stand-in for a program object
// whose authoritative representation lives on the peer. It is shared
// between the session engine and any user code that holds it (spec.md
// §5).
type Wrapper struct {
	id    int32
	table *Remote
	refs  int32 // guarded by table.mu
}

// ID returns the peer-assigned id this wrapper addresses.
func (w *Wrapper) ID() int32 { return w.id }

// Release drops one hold on w. When the last hold is dropped, w's id is
// queued for a batched FreeValue to the peer (spec.md §4.3) rather than
// announced immediately.
func (w *Wrapper) Release() {
	t := w.table
	t.mu.Lock()
	defer t.mu.Unlock()

	w.refs--
	if w.refs <= 0 {
		t.pending = append(t.pending, w.id)
	}
}

// Remote is table R: id -> wrapper, plus the pending-free queue that R's
// own wrapper lifecycle feeds (spec.md §4.3). Ids are chosen by the peer;
// a wrapper is created on first sight and cached so repeated arrivals of
// the same id resolve to the same wrapper.
type Remote struct {
	mu       sync.Mutex
	wrappers map[int32]*Wrapper
	pending  []int32 // FIFO, ids whose last local hold has been released
}

// NewRemote returns an empty Remote table.
func NewRemote() *Remote {
	return &Remote{wrappers: make(map[int32]*Wrapper)}
}

// Wrap returns the cached wrapper for id, creating one on first sight.
// Each call acquires one hold, mirroring a new local holder of the
// returned wrapper; callers must pair it with a Release.
//
// If id is currently in the pending-free queue (its refcount had reached
// zero but the FreeValue announcing it has not yet been sent), the
// revival race in spec.md §4.3 applies: the id is silently removed from
// the queue and the existing wrapper is reused, with no FreeValue ever
// sent for it.
func (t *Remote) Wrap(id int32) *Wrapper {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.wrappers[id]; ok {
		if w.refs <= 0 {
			t.removePendingLocked(id)
		}
		w.refs++
		return w
	}

	w := &Wrapper{id: id, table: t, refs: 1}
	t.wrappers[id] = w
	return w
}

// Peek reports whether id currently has a cached wrapper, without
// acquiring a hold. Used by diagnostics only.
func (t *Remote) Peek(id int32) (*Wrapper, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.wrappers[id]
	return w, ok
}

// DrainPendingFree returns and clears the ids queued by Release since the
// last drain, in insertion order, and forgets their wrappers: once
// drained, the id is considered actually freed and will bind to a brand
// new Wrapper if the peer ever sends it again. Returns nil if the queue
// is empty, so callers can treat "no FreeValue needed" as the zero
// value.
func (t *Remote) DrainPendingFree() []int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil
	}
	ids := t.pending
	t.pending = nil
	for _, id := range ids {
		delete(t.wrappers, id)
	}
	return ids
}

// Len reports the number of live (non-pending-removed) wrapper entries,
// for diagnostics.
func (t *Remote) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.wrappers)
}

func (t *Remote) removePendingLocked(id int32) {
	for i, v := range t.pending {
		if v == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return
		}
	}
}
