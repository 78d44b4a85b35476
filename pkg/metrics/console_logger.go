package metrics

import (
	"time"

	"github.com/rs/zerolog/log"
)

// TableSnapshot is a point-in-time copy of one dereference table's counters.
// It lives here so the console logger can observe any table without this
// package importing it.
type TableSnapshot struct {
	Allocates           uint64
	AllocateFailures    uint64
	Dereferences        uint64
	DereferenceFailures uint64
	Frees               uint64
	FreeFailures        uint64
	Live                int64
}

// RunConsoleLogger periodically logs per-interval deltas for a table and
// mirrors the live-entry gauge to statsd. Blocks until stopCh is closed;
// run it in its own goroutine.
func RunConsoleLogger(interval time.Duration, stopCh <-chan struct{}, tags []string, snapshot func() TableSnapshot) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := TableSnapshot{}
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			cur := snapshot()
			log.Info().
				Uint64("allocates", cur.Allocates-prev.Allocates).
				Uint64("allocate_failures", cur.AllocateFailures-prev.AllocateFailures).
				Uint64("dereferences", cur.Dereferences-prev.Dereferences).
				Uint64("dereference_failures", cur.DereferenceFailures-prev.DereferenceFailures).
				Uint64("frees", cur.Frees-prev.Frees).
				Int64("live_entries", cur.Live).
				Msg("tinyptr table stats")
			if Enabled() {
				Gauge(KEY_LIVE_ENTRIES, float64(cur.Live), tags)
			}
			prev = cur
		}
	}
}
