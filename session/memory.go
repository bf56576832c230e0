package session

import "sync"

// entry pairs a stored session with its per-id lock. The lock is held for
// the full duration of an Update (including the slow generation call inside
// fn) and by Delete, so operations on one id commit in a strict order.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// MemoryStore is an in-process Store backed by a map. The store-level
// mutex guards only the map and committed session pointers, never the
// per-id critical section, so sessions advance independently.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

func (st *MemoryStore) Update(id, initialDocument string, fn func(*Session) error) error {
	e, created := st.acquire(id, initialDocument)
	defer e.mu.Unlock()

	work := e.sess.clone()
	if err := fn(work); err != nil {
		if created {
			// The session only exists because of this failed update; a
			// failed first turn must not leave an empty session behind.
			st.mu.Lock()
			if st.entries[id] == e {
				delete(st.entries, id)
			}
			st.mu.Unlock()
		}
		return err
	}

	st.mu.Lock()
	e.sess = work
	st.mu.Unlock()
	return nil
}

func (st *MemoryStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := st.entries[id]
	if !ok {
		return nil, false
	}
	return e.sess.clone(), true
}

func (st *MemoryStore) Delete(id string) bool {
	for {
		st.mu.Lock()
		e, ok := st.entries[id]
		st.mu.Unlock()
		if !ok {
			return false
		}

		e.mu.Lock()
		st.mu.Lock()
		if st.entries[id] == e {
			delete(st.entries, id)
			st.mu.Unlock()
			e.mu.Unlock()
			return true
		}
		st.mu.Unlock()
		e.mu.Unlock()
		// The entry was removed and possibly recreated while we waited for
		// its lock. Re-resolve against the current map.
	}
}

// acquire returns the entry for id with its per-id lock held, creating the
// session with initialDocument if absent. If the entry was deleted while we
// waited for its lock, resolution restarts so a post-reset update sees a
// brand-new session rather than resurrecting the deleted one.
func (st *MemoryStore) acquire(id, initialDocument string) (*entry, bool) {
	for {
		created := false
		st.mu.Lock()
		e, ok := st.entries[id]
		if !ok {
			e = &entry{sess: New(id, initialDocument)}
			st.entries[id] = e
			created = true
		}
		st.mu.Unlock()

		e.mu.Lock()
		st.mu.Lock()
		current := st.entries[id]
		st.mu.Unlock()
		if current == e {
			return e, created
		}
		e.mu.Unlock()
	}
}
