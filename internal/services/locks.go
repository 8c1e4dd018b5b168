package services

import "sync"

// AuctionLocks hands out one exclusive lock per auction id. Admission,
// cancellation and closure hold the lock for the full read-validate-write
// sequence, so two operations on the same auction can never observe the same
// stale highest price. Operations on distinct auctions do not contend.
type AuctionLocks struct {
	mu    sync.Mutex
	locks map[string]*auctionLock
}

type auctionLock struct {
	mu   sync.Mutex
	refs int
}

func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{
		locks: make(map[string]*auctionLock),
	}
}

// Lock blocks until the exclusive lock for auctionID is held and returns the
// matching unlock function.
func (l *AuctionLocks) Lock(auctionID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[auctionID]
	if !ok {
		entry = &auctionLock{}
		l.locks[auctionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, auctionID)
		}
		l.mu.Unlock()
	}
}
