package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// planFreecache runs the same gaussian workload against freecache as a
// baseline for the deref-table plans.
func planFreecache() {
	var (
		slots      int
		cacheMB    int
		iterations int64
		readRatio  float64
	)

	flag.IntVar(&slots, "slots", 1_000_000, "key space size")
	flag.IntVar(&cacheMB, "cache-mb", 256, "freecache size in MiB")
	flag.Int64Var(&iterations, "iterations", 50_000_000, "number of operations")
	flag.Float64Var(&readRatio, "read-ratio", 0.9, "fraction of operations that read")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cache := freecache.NewCache(cacheMB * 1024 * 1024)
	value := []byte("tinyptrtest-payload-00000000000000000000000000000000")

	started := time.Now()
	var reads, hits, writes int64
	for i := int64(0); i < iterations; i++ {
		key := []byte(fmt.Sprintf("user_%d", normalDistInt(slots)))
		if rand.Float64() < readRatio {
			if _, err := cache.Get(key); err == nil {
				hits++
			}
			reads++
		} else {
			if err := cache.Set(key, value, 0); err != nil {
				log.Fatal().Err(err).Msg("freecache set failed")
			}
			writes++
		}
	}

	elapsed := time.Since(started)
	log.Info().
		Int64("reads", reads).
		Int64("hits", hits).
		Int64("writes", writes).
		Int64("entries", cache.EntryCount()).
		Dur("elapsed", elapsed).
		Float64("ops_per_sec", float64(iterations)/elapsed.Seconds()).
		Msg("freecache baseline done")
}
