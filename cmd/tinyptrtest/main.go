package main

import (
	"math/rand"
	"os"

	_ "net/http/pprof"
)

// normalDistInt returns an integer in [0, max) following a normal
// distribution centered at max/2, so a subset of keys is hot the way a
// production keyspace is.
func normalDistInt(max int) int {
	if max <= 0 {
		return 0
	}

	mean := float64(max) / 2.0
	stdDev := float64(max) / 8.0

	for {
		val := rand.NormFloat64()*stdDev + mean

		if val >= 0 && val < float64(max) {
			return int(val)
		}
	}
}

func main() {
	//pick plan from the environment variable
	plan := os.Getenv("PLAN")
	if plan == "fixed" {
		planFixed()
	} else if plan == "variable" {
		planVariable()
	} else if plan == "freecache" {
		planFreecache()
	} else {
		panic("invalid plan")
	}
}
