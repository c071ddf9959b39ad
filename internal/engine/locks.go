package engine

import (
	"sort"
	"sync"
)

// subjectLocks serialises work per subject. Entries are reference counted and dropped
// when the last holder unlocks.
type subjectLocks struct {
	mu    sync.Mutex
	locks map[string]*subjectLock
}

type subjectLock struct {
	mu   sync.Mutex
	refs int
}

func newSubjectLocks() *subjectLocks {
	return &subjectLocks{locks: make(map[string]*subjectLock)}
}

// Lock blocks until subjectID is free and returns the matching unlock
func (l *subjectLocks) Lock(subjectID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[subjectID]
	if !ok {
		entry = &subjectLock{}
		l.locks[subjectID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, subjectID)
		}
		l.mu.Unlock()
	}
}

// LockAll locks several subjects in a fixed order so two callers cannot deadlock
func (l *subjectLocks) LockAll(subjectIDs ...string) func() {
	ids := append([]string(nil), subjectIDs...)
	sort.Strings(ids)

	unlocks := make([]func(), 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}
		unlocks = append(unlocks, l.Lock(id))
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}
