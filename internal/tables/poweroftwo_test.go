package tables

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPowerOfTwoSizing(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[string](450)
	require.NoError(t, err)
	// bucket_size = ceil(log2(log2(450))) = 4
	require.Equal(t, 4, p2c.BucketSize())
	require.Equal(t, 113, p2c.NumBuckets())
	require.Equal(t, 3, p2c.PointerBits())
}

func TestPowerOfTwoRoundTrip(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[string](64)
	require.NoError(t, err)

	p, err := p2c.Allocate("bob", "value_for_bob")
	require.NoError(t, err)

	got, err := p2c.Dereference("bob", p)
	require.NoError(t, err)
	require.Equal(t, "value_for_bob", got)

	require.NoError(t, p2c.Free("bob", p))
	_, err = p2c.Dereference("bob", p)
	require.ErrorIs(t, err, ErrNotAllocated)
	require.ErrorIs(t, p2c.Free("bob", p), ErrNotAllocated)
}

func TestPowerOfTwoTieFavorsFirstChoice(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[int](64)
	require.NoError(t, err)

	// On an empty table every key sees equal occupancy, so the first
	// allocation for any key must carry choice bit 0.
	for i := 0; i < 8; i++ {
		k := fmt.Sprintf("tie_%d", i)
		p, err := p2c.Allocate(k, i)
		require.NoError(t, err)
		b1, _ := p2c.candidateBuckets(k)
		if p2c.occupancy[b1] == 1 {
			require.Zero(t, p>>uint(p2c.slotBits), "key %s", k)
		}
		require.NoError(t, p2c.Free(k, p))
	}
}

func TestPowerOfTwoOccupancyBound(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[int](64)
	require.NoError(t, err)

	allocated := 0
	for i := 0; i < 256; i++ {
		_, err := p2c.Allocate(fmt.Sprintf("load_%d", i), i)
		if err != nil {
			require.ErrorIs(t, err, ErrCapacityExhausted)
			continue
		}
		allocated++
	}
	require.Greater(t, allocated, 0)
	require.LessOrEqual(t, allocated, p2c.NumSlots())

	for b := 0; b < p2c.NumBuckets(); b++ {
		require.LessOrEqual(t, p2c.occupancy[b], p2c.BucketSize(), "bucket %d", b)
		// counter agrees with the bitmap
		used := 0
		for s := 0; s < p2c.BucketSize(); s++ {
			if p2c.store.occupied(b*p2c.BucketSize() + s) {
				used++
			}
		}
		require.Equal(t, p2c.occupancy[b], used, "bucket %d", b)
	}
}

func TestPowerOfTwoFreeDecrementsOccupancy(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[int](64)
	require.NoError(t, err)

	p, err := p2c.Allocate("carol", 7)
	require.NoError(t, err)

	b1, b2 := p2c.candidateBuckets("carol")
	total := p2c.occupancy[b1] + p2c.occupancy[b2]
	require.NoError(t, p2c.Free("carol", p))
	require.Equal(t, total-1, p2c.occupancy[b1]+p2c.occupancy[b2])
}

func TestPowerOfTwoInvalidPointer(t *testing.T) {
	p2c, err := NewPowerOfTwoChoicesDerefTable[string](64)
	require.NoError(t, err)

	// choice field above 1 cannot decode
	bad := uint64(2) << uint(p2c.slotBits)
	_, err = p2c.Dereference("bob", bad)
	require.ErrorIs(t, err, ErrInvalidPointer)
}
