package auth

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	entry   Entry
	touched time.Time
}

// MemoryEntryStore keeps rate limit entries in process memory.
//
// Entries untouched for maxAge are removed by a background cleanup. Once
// maxEntries is reached the least recently touched unlocked entry is evicted.
type MemoryEntryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxAge     time.Duration
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryEntryStore creates a store and starts its cleanup loop
func NewMemoryEntryStore(cleanupInterval, maxAge time.Duration, maxEntries int) *MemoryEntryStore {
	s := &MemoryEntryStore{
		entries:    make(map[string]*memoryEntry),
		maxAge:     maxAge,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

func (s *MemoryEntryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stop:
			return
		}
	}
}

// Update runs fn under the store lock
func (s *MemoryEntryStore) Update(ctx context.Context, key string, fn func(*Entry) *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Entry
	if me, ok := s.entries[key]; ok {
		e := me.entry
		if me.entry.LockedUntil != nil {
			lu := *me.entry.LockedUntil
			e.LockedUntil = &lu
		}
		current = &e
	}

	next := fn(current)
	if next == nil {
		delete(s.entries, key)
		return nil
	}

	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[key] = &memoryEntry{entry: *next, touched: time.Now()}
	return nil
}

// Delete removes key
func (s *MemoryEntryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// evictOldest removes the least recently touched entry that is not locked
// out. When every entry is locked, the one whose lockout ends first goes.
// Caller holds mu.
func (s *MemoryEntryStore) evictOldest() {
	var victim string
	var victimLocked bool
	var victimAt time.Time
	for key, me := range s.entries {
		locked := me.entry.LockedUntil != nil
		at := me.touched
		if locked {
			at = *me.entry.LockedUntil
		}
		switch {
		case victim == "":
		case victimLocked && !locked:
		case victimLocked == locked && at.Before(victimAt):
		default:
			continue
		}
		victim, victimLocked, victimAt = key, locked, at
	}
	if victim != "" {
		delete(s.entries, victim)
	}
}

// Cleanup removes entries untouched for longer than maxAge
func (s *MemoryEntryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, me := range s.entries {
		if now.Sub(me.touched) >= s.maxAge {
			delete(s.entries, key)
		}
	}
}

// Len returns the number of tracked keys
func (s *MemoryEntryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop halts the cleanup loop. Safe to call more than once.
func (s *MemoryEntryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}
