package ledger

import "sync"

// lockManager hands out one mutex per user so mutating operations for the
// same user serialize while different users proceed in parallel. Entries are
// never evicted; the per-user footprint is a single mutex.
type lockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockManager() *lockManager {
	return &lockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *lockManager) get(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}
