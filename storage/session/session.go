package session

import (
	"sync"
	"time"

	"github.com/kylycht/ratebot/model"
)

// Pending is a selected pair waiting for an amount
type Pending struct {
	From      model.Symbol // pair base
	To        model.Symbol // pair target
	CreatedAt time.Time    // selection moment
}

// Store keeps at most one Pending per user.
// Entries older than ttl are treated as absent.
type Store struct {
	lock    sync.Mutex
	pending map[int64]Pending
	ttl     time.Duration
	now     func() time.Time
}

// New returns empty store, ttl <= 0 disables expiry
func New(ttl time.Duration) *Store {
	return &Store{
		pending: make(map[int64]Pending),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Begin records pair selection, replacing previous one
func (s *Store) Begin(userID int64, from, to model.Symbol) Pending {
	p := Pending{From: from, To: to, CreatedAt: s.now()}

	s.lock.Lock()
	s.pending[userID] = p
	s.lock.Unlock()

	return p
}

// Get returns pending selection of the user
func (s *Store) Get(userID int64) (Pending, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	p, ok := s.pending[userID]
	if !ok {
		return Pending{}, false
	}

	if s.ttl > 0 && s.now().Sub(p.CreatedAt) >= s.ttl {
		delete(s.pending, userID)
		return Pending{}, false
	}

	return p, true
}

// Clear drops pending selection of the user
func (s *Store) Clear(userID int64) {
	s.lock.Lock()
	delete(s.pending, userID)
	s.lock.Unlock()
}

// Len returns number of tracked users
func (s *Store) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.pending)
}
