// SPDX-License-Identifier: MIT

package credentials

import (
	"context"
	"sync"
	"time"
)

// Store holds issued tokens by key. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the token stored under key. Expired entries may still be returned;
	// the Cache decides validity.
	Get(ctx context.Context, key string) (Token, bool)
	// Put stores tok under key until tok.ExpiresAt.
	Put(ctx context.Context, key string, tok Token)
	// Delete removes key.
	Delete(ctx context.Context, key string)
	// Stats returns store statistics.
	Stats() StoreStats
}

// StoreStats holds store performance counters.
type StoreStats struct {
	Hits        int64 // Get calls that found an entry
	Misses      int64 // Get calls that found nothing
	Sets        int64 // Put calls
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

// MemoryStore is an in-process Store with periodic removal of expired tokens.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Token
	stats   StoreStats
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a MemoryStore. A positive cleanupInterval starts a
// janitor goroutine that must be released with Close.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]Token),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return Token{}, false
	}
	s.stats.Hits++
	return tok, true
}

func (s *MemoryStore) Put(_ context.Context, key string, tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = tok
	s.stats.Sets++
}

func (s *MemoryStore) Delete(_ context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	stats.CurrentSize = len(s.entries)
	return stats
}

// Close stops the janitor. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// deleteExpired removes expired entries and returns how many were removed.
func (s *MemoryStore) deleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for key, tok := range s.entries {
		if !now.Before(tok.ExpiresAt) {
			delete(s.entries, key)
			count++
		}
	}
	s.stats.Evictions += int64(count)
	return count
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-s.stop:
			return
		}
	}
}
