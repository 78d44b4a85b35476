package containers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Meesho/BharatMLStack/tinyptr/internal/tables"
)

func TestContainerLevelCascade(t *testing.T) {
	c, err := newContainer[int](16)
	require.NoError(t, err)

	// 16 halves down to 1: five levels, each paired with a same-sized
	// overflow array.
	require.Len(t, c.levels, 5)
	for i, want := range []int{16, 8, 4, 2, 1} {
		require.Equal(t, want, c.levels[i].slots, "level %d", i)
		require.Len(t, c.levels[i].overflow, want, "level %d", i)
	}
}

func TestContainerFillToCapacity(t *testing.T) {
	c, err := newContainer[int](16)
	require.NoError(t, err)

	pointers := make(map[string]containerPtr, 16)
	for i := 0; i < 16; i++ {
		k := fmt.Sprintf("item_%d", i)
		p, err := c.allocate(k, i)
		require.NoError(t, err, "allocation %d", i)
		pointers[k] = p

		// An entry may spill into level i's overflow array only once
		// level i+1 is already saturated.
		if p.overflow && p.level+1 < len(c.levels) {
			require.GreaterOrEqual(t, c.occupancy[p.level+1], c.levels[p.level+1].slots,
				"premature spill at level %d", p.level)
		}
	}

	_, err = c.allocate("one_too_many", 99)
	require.ErrorIs(t, err, tables.ErrCapacityExhausted)

	for i := 0; i < 16; i++ {
		k := fmt.Sprintf("item_%d", i)
		got, err := c.dereference(k, pointers[k])
		require.NoError(t, err)
		require.Equal(t, i, got)
	}
}

func TestContainerFreeUnwindsCounters(t *testing.T) {
	c, err := newContainer[string](16)
	require.NoError(t, err)

	p, err := c.allocate("alice", "v")
	require.NoError(t, err)

	// allocate bumps every counter from level 0 through the landing level
	for i := 0; i <= p.level; i++ {
		require.Equal(t, 1, c.occupancy[i], "level %d", i)
	}
	require.Equal(t, 1, c.numItems)

	require.NoError(t, c.free("alice", p))
	for i := range c.occupancy {
		require.Zero(t, c.occupancy[i], "level %d", i)
	}
	require.Zero(t, c.numItems)
}

func TestContainerChurn(t *testing.T) {
	// Fill, drain, refill: counters must track so the container never
	// refuses an allocation while under capacity.
	c, err := newContainer[int](16)
	require.NoError(t, err)

	for round := 0; round < 8; round++ {
		pointers := make(map[string]containerPtr, 16)
		for i := 0; i < 16; i++ {
			k := fmt.Sprintf("r%d_i%d", round, i)
			p, err := c.allocate(k, i)
			require.NoError(t, err, "round %d allocation %d", round, i)
			pointers[k] = p
		}
		for k, p := range pointers {
			require.NoError(t, c.free(k, p))
		}
		require.Zero(t, c.numItems)
	}
}

func TestContainerOverflowOwnership(t *testing.T) {
	c, err := newContainer[string](16)
	require.NoError(t, err)

	p, err := c.allocate("bob", "v")
	require.NoError(t, err)

	forged := containerPtr{overflow: true, level: p.level, slot: 0}
	_, err = c.dereference("bob", forged)
	// either nothing lives in that overflow cell or a different owner does
	if err != tables.ErrNotAllocated && err != tables.ErrOwnershipMismatch {
		t.Fatalf("forged overflow pointer returned %v", err)
	}

	bad := containerPtr{level: len(c.levels), slot: 0}
	_, err = c.dereference("bob", bad)
	require.ErrorIs(t, err, tables.ErrInvalidPointer)
}
