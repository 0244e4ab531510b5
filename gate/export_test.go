package gate

import "time"

// SetClock replaces the resolver clock in tests.
func SetClock[U comparable](r *CachedResolver[U], now func() time.Time) {
	r.now = now
}
