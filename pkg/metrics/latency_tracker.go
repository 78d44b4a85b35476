package metrics

import (
	"sort"
	"time"
)

// LatencyTracker keeps a fixed ring of recent samples per operation and
// reports percentiles over them. Single-writer like the tables it
// observes.
type LatencyTracker struct {
	allocLatencies []time.Duration
	derefLatencies []time.Duration
	maxSamples     int
	allocIndex     int
	derefIndex     int
	allocCount     int64
	derefCount     int64
}

const defaultMaxSamples = 100000

func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		allocLatencies: make([]time.Duration, defaultMaxSamples),
		derefLatencies: make([]time.Duration, defaultMaxSamples),
		maxSamples:     defaultMaxSamples,
	}
}

func (lt *LatencyTracker) RecordAllocate(duration time.Duration) {
	lt.allocLatencies[lt.allocIndex] = duration
	lt.allocIndex = (lt.allocIndex + 1) % lt.maxSamples
	lt.allocCount++
}

func (lt *LatencyTracker) RecordDereference(duration time.Duration) {
	lt.derefLatencies[lt.derefIndex] = duration
	lt.derefIndex = (lt.derefIndex + 1) % lt.maxSamples
	lt.derefCount++
}

func (lt *LatencyTracker) AllocatePercentiles() (p25, p50, p99 time.Duration) {
	return percentiles(lt.allocLatencies, lt.allocCount, lt.maxSamples)
}

func (lt *LatencyTracker) DereferencePercentiles() (p25, p50, p99 time.Duration) {
	return percentiles(lt.derefLatencies, lt.derefCount, lt.maxSamples)
}

func percentiles(ring []time.Duration, count int64, maxSamples int) (p25, p50, p99 time.Duration) {
	samples := count
	if samples > int64(maxSamples) {
		samples = int64(maxSamples)
	}
	if samples == 0 {
		return 0, 0, 0
	}

	latenciesCopy := make([]time.Duration, samples)
	copy(latenciesCopy, ring[:samples])
	sort.Slice(latenciesCopy, func(i, j int) bool {
		return latenciesCopy[i] < latenciesCopy[j]
	})

	p25 = latenciesCopy[int(float64(samples)*0.25)]
	p50 = latenciesCopy[int(float64(samples)*0.50)]
	p99 = latenciesCopy[int(float64(samples)*0.99)]

	return p25, p50, p99
}
