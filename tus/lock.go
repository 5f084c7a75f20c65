package tus

import "sync"

// uploadLocks serializes requests that modify the same upload. An entry only
// lives while some request holds or waits for it.
type uploadLocks struct {
	mu    sync.Mutex
	locks map[string]*uploadLock
}

type uploadLock struct {
	sync.Mutex
	refs int
}

func newUploadLocks() *uploadLocks {
	return &uploadLocks{locks: make(map[string]*uploadLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (l *uploadLocks) lock(id string) func() {
	l.mu.Lock()
	ul, ok := l.locks[id]
	if !ok {
		ul = &uploadLock{}
		l.locks[id] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.Lock()
	return func() {
		ul.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *uploadLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
