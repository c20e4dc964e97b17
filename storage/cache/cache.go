package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kylycht/ratebot/storage"
	"github.com/rs/zerolog/log"
)

const (
	sweepInterval = time.Minute
)

type entry struct {
	rate      float64   // cached quote
	expiresAt time.Time // moment the quote goes stale
}

type MCache struct {
	lock   sync.RWMutex     // rw lock guards store
	store  map[string]entry // quotes by key
	ticker *time.Ticker     // ticker to sweep expired entries every X interval
	doneC  chan struct{}    // chan to signal ticker stoppage
	once   sync.Once        // guards doneC close
	now    func() time.Time // clock, replaced in tests
}

// NewMemory returns in-process cache that drops
// expired entries every sweep interval
func NewMemory() *MCache {
	return newMemory(sweepInterval)
}

func newMemory(interval time.Duration) *MCache {
	m := &MCache{
		store: make(map[string]entry),
		doneC: make(chan struct{}),
		now:   time.Now,
	}

	m.init(interval)

	return m
}

var _ storage.Cache = (*MCache)(nil)

// Get implements storage.Cache.
func (m *MCache) Get(_ context.Context, key string) (float64, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	e, ok := m.store[key]
	if !ok || !m.now().Before(e.expiresAt) {
		return 0, false
	}

	return e.rate, true
}

// Set implements storage.Cache.
func (m *MCache) Set(_ context.Context, key string, rate float64, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.lock.Lock()
	m.store[key] = entry{rate: rate, expiresAt: m.now().Add(ttl)}
	m.lock.Unlock()

	return nil
}

// Len returns number of stored entries, expired included
func (m *MCache) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.store)
}

// Close stops the sweeper
func (m *MCache) Close() error {
	m.once.Do(func() {
		close(m.doneC)
	})
	return nil
}

func (m *MCache) init(interval time.Duration) {
	m.ticker = time.NewTicker(interval)

	go func() {
		defer m.ticker.Stop()

		for {
			select {
			case <-m.doneC:
				return

			case <-m.ticker.C:
				if n := m.sweep(); n > 0 {
					log.Debug().Int("evicted", n).Msg("evicted expired quotes from cache")
				}
			}
		}
	}()
}

func (m *MCache) sweep() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	evicted := 0

	for k, e := range m.store {
		if !now.Before(e.expiresAt) {
			delete(m.store, k)
			evicted++
		}
	}

	return evicted
}
