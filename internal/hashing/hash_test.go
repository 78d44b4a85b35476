package hashing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSum64Deterministic(t *testing.T) {
	for role := RoleBucket; role < roleCount; role++ {
		require.Equal(t, Sum64(role, "alice"), Sum64(role, "alice"))
	}
}

func TestRolesAreIndependent(t *testing.T) {
	// The same key must not land on correlated positions across roles.
	seen := make(map[uint64]Role)
	for role := RoleBucket; role < roleCount; role++ {
		h := Sum64(role, "alice")
		prev, dup := seen[h]
		require.False(t, dup, "role %d collides with role %d", role, prev)
		seen[h] = role
	}
}

func TestBucketRange(t *testing.T) {
	const numBuckets = 7
	counts := make([]int, numBuckets)
	for i := 0; i < 10_000; i++ {
		b := Bucket(RoleBucket, fmt.Sprintf("user_%d", i), numBuckets)
		require.GreaterOrEqual(t, b, 0)
		require.Less(t, b, numBuckets)
		counts[b]++
	}
	// Rough uniformity: no bucket should be empty or hold half the keys.
	for b, c := range counts {
		require.Greater(t, c, 0, "bucket %d never chosen", b)
		require.Less(t, c, 5_000, "bucket %d over-chosen", b)
	}
}
