// Package cache stores the assembled eligibility rule set between requests.
//
// Every cache carries a generation counter. Invalidate bumps it, and a
// snapshot only counts as a hit while it was stored under the current
// generation. A reader that loads the rules around a concurrent write
// therefore cannot resurrect the older snapshot.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/diewo77/go-quotes/internal/eligibility"
)

// RuleCache holds at most one rule set snapshot.
type RuleCache interface {
	// Get returns the snapshot and the current generation. The generation is
	// reported on a miss too; pass it back to Set after loading the rules.
	Get(ctx context.Context) (rs eligibility.RuleSet, gen int64, ok bool, err error)
	// Set stores rs as loaded under gen. A snapshot stored under an older
	// generation is never returned by Get.
	Set(ctx context.Context, gen int64, rs eligibility.RuleSet) error
	// Invalidate drops the snapshot and advances the generation.
	Invalidate(ctx context.Context) error
}

// Memory is a process-local RuleCache with a TTL.
// A zero TTL keeps entries until invalidated.
type Memory struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	gen       int64
	rules     eligibility.RuleSet
	expiresAt time.Time
	ok        bool
}

// NewMemory creates an empty in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context) (eligibility.RuleSet, int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok || (m.ttl > 0 && !m.now().Before(m.expiresAt)) {
		return eligibility.RuleSet{}, m.gen, false, nil
	}
	return m.rules, m.gen, true, nil
}

func (m *Memory) Set(_ context.Context, gen int64, rs eligibility.RuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// invalidated since the caller read the generation
	if gen != m.gen {
		return nil
	}
	m.rules = rs
	m.ok = true
	m.expiresAt = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	m.gen++
	m.rules = eligibility.RuleSet{}
	m.ok = false
	m.mu.Unlock()
	return nil
}

// Nop never holds anything.
type Nop struct{}

func (Nop) Get(context.Context) (eligibility.RuleSet, int64, bool, error) {
	return eligibility.RuleSet{}, 0, false, nil
}
func (Nop) Set(context.Context, int64, eligibility.RuleSet) error { return nil }
func (Nop) Invalidate(context.Context) error                      { return nil }
