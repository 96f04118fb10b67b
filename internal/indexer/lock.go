package indexer

import "sync"

// DocumentLocks hands out non-blocking per-document locks so two ingests of
// the same document never interleave their replace transactions.
type DocumentLocks struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewDocumentLocks returns an empty lock set.
func NewDocumentLocks() *DocumentLocks {
	return &DocumentLocks{held: make(map[int64]struct{})}
}

// TryAcquire locks documentID without blocking.
// Returns false if another caller holds it.
func (l *DocumentLocks) TryAcquire(documentID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[documentID]; ok {
		return false
	}
	l.held[documentID] = struct{}{}
	return true
}

// Release unlocks documentID.
// Must only be called by the caller that acquired it.
func (l *DocumentLocks) Release(documentID int64) {
	l.mu.Lock()
	delete(l.held, documentID)
	l.mu.Unlock()
}

// Held reports how many documents are currently locked.
func (l *DocumentLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
