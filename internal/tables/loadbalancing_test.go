package tables

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// keysInBucket returns count distinct keys that all hash into the given
// bucket of t.
func keysInBucket[V any](t *LoadBalancingTable[V], bucket, count int) []string {
	keys := make([]string, 0, count)
	for i := 0; len(keys) < count; i++ {
		k := fmt.Sprintf("key_%d", i)
		if t.BucketOf(k) == bucket {
			keys = append(keys, k)
		}
	}
	return keys
}

func TestLoadBalancingSizing(t *testing.T) {
	lbt, err := NewLoadBalancingTable[string](100, 0.3)
	require.NoError(t, err)
	require.Equal(t, 20, lbt.BucketSize())
	require.Equal(t, 5, lbt.NumBuckets())
	require.Equal(t, 100, lbt.NumSlots())
	require.Equal(t, 5, lbt.PointerBits())
}

func TestLoadBalancingRoundTrip(t *testing.T) {
	lbt, err := NewLoadBalancingTable[string](100, 0.3)
	require.NoError(t, err)

	p, err := lbt.Allocate("alice", "value_for_alice")
	require.NoError(t, err)
	require.Less(t, p, uint64(lbt.BucketSize()))

	got, err := lbt.Dereference("alice", p)
	require.NoError(t, err)
	require.Equal(t, "value_for_alice", got)

	require.NoError(t, lbt.Free("alice", p))

	_, err = lbt.Dereference("alice", p)
	require.ErrorIs(t, err, ErrNotAllocated)
	require.ErrorIs(t, lbt.Free("alice", p), ErrNotAllocated)
}

func TestLoadBalancingBucketExhaustion(t *testing.T) {
	// bucket_size = ceil((1/0.09)*log2(1/0.3)) = 20: twenty keys forced
	// into one bucket all land, the twenty-first fails and stores nothing.
	lbt, err := NewLoadBalancingTable[int](100, 0.3)
	require.NoError(t, err)

	keys := keysInBucket(lbt, 2, 21)
	pointers := make(map[string]uint64, 20)
	for i, k := range keys[:20] {
		p, err := lbt.Allocate(k, i)
		require.NoError(t, err, "allocation %d", i)
		pointers[k] = p
	}

	_, err = lbt.Allocate(keys[20], 20)
	require.ErrorIs(t, err, ErrCapacityExhausted)

	// The failed allocation must not have disturbed the bucket.
	for i, k := range keys[:20] {
		got, err := lbt.Dereference(k, pointers[k])
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}

func TestLoadBalancingOwnershipIsolation(t *testing.T) {
	lbt, err := NewLoadBalancingTable[string](100, 0.3)
	require.NoError(t, err)

	p, err := lbt.Allocate("k1", "v")
	require.NoError(t, err)

	// Same numeric pointer with a foreign key never returns the value.
	_, err = lbt.Dereference("k2", p)
	if err == nil {
		t.Fatal("foreign key dereference succeeded")
	}
	require.True(t, err == ErrNotAllocated || err == ErrOwnershipMismatch, "got %v", err)
}

func TestLoadBalancingInvalidPointer(t *testing.T) {
	lbt, err := NewLoadBalancingTable[string](100, 0.3)
	require.NoError(t, err)

	_, err = lbt.Dereference("alice", uint64(lbt.BucketSize()))
	require.ErrorIs(t, err, ErrInvalidPointer)
	require.ErrorIs(t, lbt.Free("alice", 1<<20), ErrInvalidPointer)
}

func TestLoadBalancingConstruction(t *testing.T) {
	_, err := NewLoadBalancingTable[string](0, 0.3)
	require.ErrorIs(t, err, ErrNumSlotsLessThan1)
	_, err = NewLoadBalancingTable[string](10, 0)
	require.ErrorIs(t, err, ErrDeltaOutOfRange)
	_, err = NewLoadBalancingTable[string](10, 1.5)
	require.ErrorIs(t, err, ErrDeltaOutOfRange)

	// Rounding up to whole buckets may exceed the requested slot count.
	lbt, err := NewLoadBalancingTable[string](101, 0.3)
	require.NoError(t, err)
	require.Equal(t, 120, lbt.NumSlots())
}
