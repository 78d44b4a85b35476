package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/tinyptr/pkg/deref"
	"github.com/Meesho/BharatMLStack/tinyptr/pkg/metrics"
)

func planFixed() {
	var (
		slots      int
		delta      float64
		iterations int64
		readRatio  float64
		logStats   bool
	)

	flag.IntVar(&slots, "slots", 1_000_000, "slot budget n")
	flag.Float64Var(&delta, "delta", 0.1, "wasted-space fraction")
	flag.Int64Var(&iterations, "iterations", 50_000_000, "number of operations")
	flag.Float64Var(&readRatio, "read-ratio", 0.9, "fraction of operations that dereference")
	flag.BoolVar(&logStats, "log-stats", true, "periodically log table stats")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	go func() {
		log.Info().Msg("Starting pprof server on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Error().Err(err).Msg("pprof server failed")
		}
	}()

	metrics.Init()
	dt, err := deref.New[[]byte](deref.Config{N: slots, PointerType: deref.Fixed, Delta: delta})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build fixed table")
	}
	log.Info().Int("slots", slots).Float64("delta", delta).
		Int("pointer_bits", dt.PointerBits()).Msg("fixed table ready")

	stopCh := make(chan struct{})
	if logStats {
		go metrics.RunConsoleLogger(30*time.Second, stopCh, metrics.GetTableKindTag(metrics.TAG_VALUE_FIXED), dt.Snapshot)
	}

	runWorkload(dt, slots, iterations, readRatio)
	close(stopCh)
}

// runWorkload drives a single-writer allocate/dereference/free mix over a
// gaussian-hot keyspace. The key-to-pointer index lives here: the consuming
// layer owns it, the table never does.
func runWorkload(dt *deref.DerefTable[[]byte], keySpace int, iterations int64, readRatio float64) {
	pointers := make(map[string]uint64, keySpace)
	value := []byte("tinyptrtest-payload-00000000000000000000000000000000")
	tracker := metrics.NewLatencyTracker()

	started := time.Now()
	var reads, writes, frees, exhausted int64
	for i := int64(0); i < iterations; i++ {
		key := fmt.Sprintf("user_%d", normalDistInt(keySpace))
		p, live := pointers[key]
		switch {
		case live && rand.Float64() < readRatio:
			opStart := time.Now()
			if _, err := dt.Dereference(key, p); err != nil {
				log.Fatal().Err(err).Str("key", key).Msg("live pointer failed to dereference")
			}
			tracker.RecordDereference(time.Since(opStart))
			reads++
		case live:
			if err := dt.Free(key, p); err != nil {
				log.Fatal().Err(err).Str("key", key).Msg("live pointer failed to free")
			}
			delete(pointers, key)
			frees++
		default:
			opStart := time.Now()
			p, err := dt.Allocate(key, value)
			if err != nil {
				if !errors.Is(err, deref.ErrCapacityExhausted) {
					log.Fatal().Err(err).Str("key", key).Msg("allocate failed")
				}
				exhausted++
				continue
			}
			tracker.RecordAllocate(time.Since(opStart))
			pointers[key] = p
			writes++
		}
	}

	elapsed := time.Since(started)
	ap25, ap50, ap99 := tracker.AllocatePercentiles()
	dp25, dp50, dp99 := tracker.DereferencePercentiles()
	log.Info().
		Int64("reads", reads).
		Int64("writes", writes).
		Int64("frees", frees).
		Int64("capacity_exhausted", exhausted).
		Int("live", len(pointers)).
		Dur("elapsed", elapsed).
		Float64("ops_per_sec", float64(iterations)/elapsed.Seconds()).
		Dur("alloc_p25", ap25).Dur("alloc_p50", ap50).Dur("alloc_p99", ap99).
		Dur("deref_p25", dp25).Dur("deref_p50", dp50).Dur("deref_p99", dp99).
		Msg("workload done")
}
