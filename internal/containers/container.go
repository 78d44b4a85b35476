package containers

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/tinyptr/internal/tables"
)

// Every level runs at delta=1/2, so level buckets stay a constant width
// and a level pointer is a constant number of bits.
const levelDelta = 0.5

// overflowCell holds an entry the level's table could not admit. Overflow
// cells record the owning key only; the cell index is the pointer.
type overflowCell[V any] struct {
	owner string
	value V
	used  bool
}

type level[V any] struct {
	table    *tables.LoadBalancingTable[V]
	overflow []overflowCell[V]
	slots    int
}

// container owns a cascade of shrinking load-balancing levels, halving in
// size from capacity down to one slot, each paired with a same-sized
// overflow array. Levels and counters are built once and never shared.
type container[V any] struct {
	capacity  int
	numItems  int
	levels    []level[V]
	occupancy []int
}

// containerPtr is the in-container half of a global pointer.
type containerPtr struct {
	overflow bool
	level    int
	slot     uint64
}

func newContainer[V any](capacity int) (*container[V], error) {
	c := &container[V]{capacity: capacity}
	for s := capacity; s > 0; s /= 2 {
		t, err := tables.NewLoadBalancingTable[V](s, levelDelta)
		if err != nil {
			return nil, err
		}
		c.levels = append(c.levels, level[V]{
			table:    t,
			overflow: make([]overflowCell[V], s),
			slots:    s,
		})
	}
	c.occupancy = make([]int, len(c.levels))
	return c, nil
}

// allocate walks the cascade: every visited level's occupancy counter is
// bumped, then its table is tried. A level that cannot admit the key spills
// to its own overflow array only once the next level is already saturated;
// otherwise the walk descends.
func (c *container[V]) allocate(key string, value V) (containerPtr, error) {
	if c.numItems >= c.capacity {
		return containerPtr{}, tables.ErrCapacityExhausted
	}
	c.numItems++
	for i := range c.levels {
		c.occupancy[i]++
		p, err := c.levels[i].table.Allocate(key, value)
		if err == nil {
			return containerPtr{level: i, slot: p}, nil
		}
		if !errors.Is(err, tables.ErrCapacityExhausted) {
			return containerPtr{}, err
		}
		nextOccupancy, nextSlots := 0, 0
		if i+1 < len(c.levels) {
			nextOccupancy = c.occupancy[i+1]
			nextSlots = c.levels[i+1].slots
		}
		if nextOccupancy >= nextSlots {
			lv := &c.levels[i]
			cell := -1
			for j := range lv.overflow {
				if !lv.overflow[j].used {
					cell = j
					break
				}
			}
			if cell < 0 {
				log.Panic().Int("level", i).Msg("overflow array full despite occupancy accounting")
			}
			lv.overflow[cell] = overflowCell[V]{owner: key, value: value, used: true}
			return containerPtr{overflow: true, level: i, slot: uint64(cell)}, nil
		}
	}
	log.Panic().Int("capacity", c.capacity).Int("items", c.numItems).
		Msg("no level admitted an item in a container with spare capacity")
	return containerPtr{}, nil
}

func (c *container[V]) dereference(key string, p containerPtr) (V, error) {
	var zero V
	if p.level >= len(c.levels) {
		return zero, tables.ErrInvalidPointer
	}
	if p.overflow {
		cell, err := c.overflowCellAt(key, p)
		if err != nil {
			return zero, err
		}
		return cell.value, nil
	}
	return c.levels[p.level].table.Dereference(key, p.slot)
}

// free clears the entry and unwinds the cascading occupancy increments
// done at allocate time: every counter from level 0 through the freed
// level, plus the item count.
func (c *container[V]) free(key string, p containerPtr) error {
	if p.level >= len(c.levels) {
		return tables.ErrInvalidPointer
	}
	if p.overflow {
		cell, err := c.overflowCellAt(key, p)
		if err != nil {
			return err
		}
		*cell = overflowCell[V]{}
	} else if err := c.levels[p.level].table.Free(key, p.slot); err != nil {
		return err
	}
	c.numItems--
	for i := 0; i <= p.level; i++ {
		c.occupancy[i]--
	}
	return nil
}

func (c *container[V]) overflowCellAt(key string, p containerPtr) (*overflowCell[V], error) {
	lv := &c.levels[p.level]
	if p.slot >= uint64(lv.slots) {
		return nil, tables.ErrInvalidPointer
	}
	cell := &lv.overflow[p.slot]
	if !cell.used {
		return nil, tables.ErrNotAllocated
	}
	if cell.owner != key {
		return nil, tables.ErrOwnershipMismatch
	}
	return cell, nil
}
