package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/tinyptr/pkg/deref"
	"github.com/Meesho/BharatMLStack/tinyptr/pkg/metrics"
)

func planVariable() {
	var (
		items      int
		iterations int64
		readRatio  float64
		logStats   bool
	)

	flag.IntVar(&items, "items", 1_000_000, "item budget n")
	flag.Int64Var(&iterations, "iterations", 50_000_000, "number of operations")
	flag.Float64Var(&readRatio, "read-ratio", 0.9, "fraction of operations that dereference")
	flag.BoolVar(&logStats, "log-stats", true, "periodically log table stats")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	metrics.Init()
	dt, err := deref.New[[]byte](deref.Config{N: items, PointerType: deref.Variable})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build variable table")
	}
	log.Info().Int("items", items).
		Int("pointer_bits", dt.PointerBits()).Msg("variable table ready")

	stopCh := make(chan struct{})
	if logStats {
		go metrics.RunConsoleLogger(30*time.Second, stopCh, metrics.GetTableKindTag(metrics.TAG_VALUE_VARIABLE), dt.Snapshot)
	}

	// Keep the hot keyspace below the item budget so container fills stay
	// the tail case they are designed to be.
	runWorkload(dt, items*3/4, iterations, readRatio)
	close(stopCh)
}
