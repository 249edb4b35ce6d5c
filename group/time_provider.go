package group

import "time"

// TimeProvider is the clock behind cache freshness, stub message timestamps,
// invite expiry and the sweep schedule.
type TimeProvider interface {
	Now() time.Time
	// NewTicker drives the periodic cache sweep.
	NewTicker(d time.Duration) *time.Ticker
}

// RealTimeProvider reads the wall clock.
type RealTimeProvider struct{}

// Now returns time.Now.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// NewTicker returns time.NewTicker(d).
func (RealTimeProvider) NewTicker(d time.Duration) *time.Ticker {
	return time.NewTicker(d)
}

// defaultTimeProvider backs directories and caches built without a Clock.
var defaultTimeProvider TimeProvider = RealTimeProvider{}

// getTimeProvider falls back to defaultTimeProvider for a nil tp.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return defaultTimeProvider
}
