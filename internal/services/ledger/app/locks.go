package app

import "sync"

// campaignLocks hands out one mutex per campaign id. Entries are dropped when
// the last holder or waiter releases them so the map tracks only campaigns
// with in-flight operations.
type campaignLocks struct {
	mu    sync.Mutex
	locks map[uint64]*campaignLock
}

type campaignLock struct {
	mu   sync.Mutex
	refs int
}

func newCampaignLocks() *campaignLocks {
	return &campaignLocks{locks: make(map[uint64]*campaignLock)}
}

// lock blocks until the campaign is exclusively held and returns its release.
func (l *campaignLocks) lock(campaignID uint64) func() {
	l.mu.Lock()
	entry, ok := l.locks[campaignID]
	if !ok {
		entry = &campaignLock{}
		l.locks[campaignID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, campaignID)
		}
		l.mu.Unlock()
	}
}

func (l *campaignLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
