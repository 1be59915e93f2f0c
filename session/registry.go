package session

import (
	"errors"
	"sync"

	"github.com/viant/mcpsession/internal/collection"
)

// ErrAlreadyRegistered is returned by Registry.Register when session_id is
// already present.
var ErrAlreadyRegistered = errors.New("session already registered")

// ErrNotFound is returned by registry operations that require an existing
// session record.
var ErrNotFound = errors.New("session not found")

// entry pairs a live record with the plumbing that lets Unregister stop the
// owner-monitor goroutine Register started for it, so unregistering a
// session (whether from owner death or ordinary cleanup) never leaks a
// goroutine blocked on Owner.Done() forever.
type entry struct {
	record *Record
	stop   chan struct{}
	once   sync.Once
}

func (e *entry) stopMonitor() {
	e.once.Do(func() { close(e.stop) })
}

// Registry is the single, process-wide serialization point for session
// state: the id -> record map plus owner-liveness monitoring (§4.1). It is
// safe for concurrent use by every transport adapter and session manager in
// the process; callers obtain one and pass it around explicitly rather than
// reaching for a package-level singleton.
type Registry struct {
	entries *collection.SyncMap[string, *entry]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: collection.NewSyncMap[string, *entry]()}
}

// Register adds rec under its SessionID. If rec.Owner is non-nil, Register
// starts a goroutine that waits on Owner.Done() and unregisters the session
// the moment the owner terminates - the only automatic removal path per
// §4.1.
func (r *Registry) Register(rec *Record) error {
	if _, ok := r.entries.Get(rec.SessionID); ok {
		return ErrAlreadyRegistered
	}
	e := &entry{record: rec, stop: make(chan struct{})}
	r.entries.Put(rec.SessionID, e)
	if rec.Owner != nil {
		go r.monitor(rec.SessionID, rec.Owner, e)
	}
	return nil
}

func (r *Registry) monitor(id string, owner Owner, e *entry) {
	select {
	case <-owner.Done():
		r.Unregister(id)
	case <-e.stop:
	}
}

// Unregister removes id, if present, and stops its owner monitor. Idempotent
// when id is absent.
func (r *Registry) Unregister(id string) {
	e, ok := r.entries.Get(id)
	if !ok {
		return
	}
	r.entries.Delete(id)
	e.stopMonitor()
}

// Lookup returns a point-in-time Snapshot of the session record for id.
func (r *Registry) Lookup(id string) (Snapshot, bool) {
	e, ok := r.entries.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return e.record.Snapshot(), true
}

// Update merges patch into the live record for id under the record's own
// lock, atomically relative to concurrent Update/Snapshot calls.
func (r *Registry) Update(id string, patch Patch) error {
	e, ok := r.entries.Get(id)
	if !ok {
		return ErrNotFound
	}
	e.record.apply(patch)
	return nil
}

// List returns a Snapshot of every live session, keyed by session id.
func (r *Registry) List() map[string]Snapshot {
	out := make(map[string]Snapshot)
	r.entries.Range(func(id string, e *entry) bool {
		out[id] = e.record.Snapshot()
		return true
	})
	return out
}

// Len reports the number of live sessions. Mainly useful to tests and
// inactivity-sweep diagnostics.
func (r *Registry) Len() int {
	return r.entries.Len()
}

// EnableReplay turns on id's outbound replay ring at the given capacity. A
// no-op if id is unknown.
func (r *Registry) EnableReplay(id string, capacity int) {
	e, ok := r.entries.Get(id)
	if !ok {
		return
	}
	e.record.EnableReplay(capacity)
}

// RecordEvent appends payload to id's replay ring, if replay is enabled for
// it. ok is false when id is unknown or its replay ring is disabled.
func (r *Registry) RecordEvent(id string, payload []byte) (seq uint64, ok bool) {
	e, ok := r.entries.Get(id)
	if !ok {
		return 0, false
	}
	return e.record.recordEvent(payload)
}

// EventsAfter returns every event buffered for id with a sequence number
// greater than after. ok is false when id is unknown.
func (r *Registry) EventsAfter(id string, after uint64) ([]ReplayEvent, bool) {
	e, ok := r.entries.Get(id)
	if !ok {
		return nil, false
	}
	return e.record.eventsAfter(after), true
}

// Reattach swaps the live owner of an existing session record - the path a
// reconnecting SSE client takes when it presents a session id the registry
// still holds a record for (its previous owner having since disconnected).
// The old owner's monitor goroutine is stopped and a new one started against
// owner. Reports false, changing nothing, if id is not (or no longer)
// present - the caller's fallback is to mint a fresh session.
func (r *Registry) Reattach(id string, owner Owner) bool {
	e, ok := r.entries.Get(id)
	if !ok {
		return false
	}
	e.stopMonitor()
	next := &entry{record: e.record, stop: make(chan struct{})}
	e.record.setOwner(owner)
	r.entries.Put(id, next)
	if owner != nil {
		go r.monitor(id, owner, next)
	}
	return true
}
