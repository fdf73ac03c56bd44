package security

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Stats is a point-in-time copy of an Analyzer's counters.
type Stats struct {
	Analyses             int64 `json:"analyses"`
	CacheHits            int64 `json:"cache_hits"`
	DegradedHistoryLoads int64 `json:"degraded_history_loads"`
	FailedUpserts        int64 `json:"failed_upserts"`
}

// analyzerCounters live as long as the Analyzer that owns them.
type analyzerCounters struct {
	analyses             atomic.Int64
	cacheHits            atomic.Int64
	degradedHistoryLoads atomic.Int64
	failedUpserts        atomic.Int64
}

func (c *analyzerCounters) snapshot() Stats {
	return Stats{
		Analyses:             c.analyses.Load(),
		CacheHits:            c.cacheHits.Load(),
		DegradedHistoryLoads: c.degradedHistoryLoads.Load(),
		FailedUpserts:        c.failedUpserts.Load(),
	}
}
