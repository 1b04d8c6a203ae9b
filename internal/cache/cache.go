package cache

import (
	"context"
	"sync"
	"time"

	"affiliate_sheets/internal/affiliate"
)

const DefaultMaxAge = time.Hour

// Entry is a snapshot of fetched listings and when they were fetched.
type Entry struct {
	Listings  []affiliate.Listing `json:"listings"`
	FetchedAt time.Time           `json:"fetchedAt"`
}

// Fresh reports whether the entry is younger than maxAge at now. A
// non-positive maxAge uses DefaultMaxAge.
func (e Entry) Fresh(now time.Time, maxAge time.Duration) bool {
	if e.FetchedAt.IsZero() {
		return false
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return now.Sub(e.FetchedAt) < maxAge
}

// Store holds at most one Entry. Save replaces it wholesale.
type Store interface {
	Load(ctx context.Context) (Entry, bool, error)
	Save(ctx context.Context, e Entry) error
	Invalidate(ctx context.Context) error
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	entry *Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entry == nil {
		return Entry{}, false, nil
	}
	return *m.entry, true, nil
}

func (m *Memory) Save(_ context.Context, e Entry) error {
	m.mu.Lock()
	m.entry = &e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.entry = nil
	m.mu.Unlock()
	return nil
}
