package cache

import "time"

// SetClock replaces the cache clock in tests.
func SetClock(m *Memory, now func() time.Time) {
	m.now = now
}
