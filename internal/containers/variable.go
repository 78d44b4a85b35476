package containers

import (
	"errors"
	"fmt"
	"math"

	"github.com/Meesho/BharatMLStack/tinyptr/internal/hashing"
	"github.com/Meesho/BharatMLStack/tinyptr/internal/maths"
	"github.com/Meesho/BharatMLStack/tinyptr/internal/tables"
)

var (
	ErrItemBudgetLessThan1  = errors.New("n must be greater than 0")
	ErrPointerWidthOverflow = errors.New("packed pointer fields exceed 63 bits for requested n")
)

// layout describes the fixed-width bit fields of a packed global pointer:
// [container | overflow flag | level | slot], container in the top field.
type layout struct {
	bits           uint
	containerShift uint
	flagShift      uint
	levelShift     uint
	levelMask      uint64
	slotMask       uint64
}

// newLayout sizes the fields for the configured counts and refuses any
// configuration whose packed pointer would not fit 63 bits; truncating
// silently is never an option.
func newLayout(numContainers, numLevels int, maxSlot uint64) (layout, error) {
	containerBits := uint(maths.BitsFor(uint64(numContainers - 1)))
	levelBits := uint(maths.BitsFor(uint64(numLevels - 1)))
	slotBits := uint(maths.BitsFor(maxSlot))
	total := containerBits + 1 + levelBits + slotBits
	if total > 63 {
		return layout{}, ErrPointerWidthOverflow
	}
	return layout{
		bits:           total,
		containerShift: slotBits + levelBits + 1,
		flagShift:      slotBits + levelBits,
		levelShift:     slotBits,
		levelMask:      1<<levelBits - 1,
		slotMask:       1<<slotBits - 1,
	}, nil
}

func (l layout) pack(containerIdx int, p containerPtr) uint64 {
	v := uint64(containerIdx) << l.containerShift
	if p.overflow {
		v |= 1 << l.flagShift
	}
	v |= uint64(p.level) << l.levelShift
	v |= p.slot
	return v
}

func (l layout) unpack(p uint64) (int, containerPtr) {
	return int(p >> l.containerShift), containerPtr{
		overflow: p>>l.flagShift&1 == 1,
		level:    int(p >> l.levelShift & l.levelMask),
		slot:     p & l.slotMask,
	}
}

// VariableSizeDerefTable partitions keys across containers by hash, so a
// pointer's width tracks the local container size rather than the global
// item budget.
//
// Single-writer: the caller serializes access to one instance.
type VariableSizeDerefTable[V any] struct {
	itemBudget        int
	containerCapacity int
	containers        []*container[V]
	lay               layout
}

// NewVariableSizeDerefTable builds ceil(n/log2(n)) containers of capacity
// max(16, 4*log2(n)) each; n is an item budget, the slot total is O(n).
func NewVariableSizeDerefTable[V any](n int) (*VariableSizeDerefTable[V], error) {
	if n < 1 {
		return nil, ErrItemBudgetLessThan1
	}
	numContainers := 1
	capacity := 16
	if n > 1 {
		logN := math.Log2(float64(n))
		numContainers = int(math.Ceil(float64(n) / logN))
		if c := int(4 * logN); c > capacity {
			capacity = c
		}
	}
	t := &VariableSizeDerefTable[V]{
		itemBudget:        n,
		containerCapacity: capacity,
		containers:        make([]*container[V], numContainers),
	}
	for i := range t.containers {
		c, err := newContainer[V](capacity)
		if err != nil {
			return nil, err
		}
		t.containers[i] = c
	}
	// The slot field must carry the widest level pointer and the widest
	// overflow index.
	var maxSlot uint64
	for _, lv := range t.containers[0].levels {
		if m := uint64(1)<<uint(lv.table.PointerBits()) - 1; m > maxSlot {
			maxSlot = m
		}
		if m := uint64(lv.slots - 1); m > maxSlot {
			maxSlot = m
		}
	}
	lay, err := newLayout(numContainers, len(t.containers[0].levels), maxSlot)
	if err != nil {
		return nil, err
	}
	t.lay = lay
	return t, nil
}

func (t *VariableSizeDerefTable[V]) Allocate(key string, value V) (uint64, error) {
	idx := hashing.Bucket(hashing.RoleContainer, key, len(t.containers))
	p, err := t.containers[idx].allocate(key, value)
	if err != nil {
		if errors.Is(err, tables.ErrCapacityExhausted) {
			return 0, fmt.Errorf("container %d full: %w", idx, tables.ErrCapacityExhausted)
		}
		return 0, err
	}
	return t.lay.pack(idx, p), nil
}

func (t *VariableSizeDerefTable[V]) Dereference(key string, p uint64) (V, error) {
	idx, cp, err := t.decode(p)
	if err != nil {
		var zero V
		return zero, err
	}
	return t.containers[idx].dereference(key, cp)
}

func (t *VariableSizeDerefTable[V]) Free(key string, p uint64) error {
	idx, cp, err := t.decode(p)
	if err != nil {
		return err
	}
	return t.containers[idx].free(key, cp)
}

func (t *VariableSizeDerefTable[V]) decode(p uint64) (int, containerPtr, error) {
	if p >= 1<<t.lay.bits {
		return 0, containerPtr{}, tables.ErrInvalidPointer
	}
	idx, cp := t.lay.unpack(p)
	if idx >= len(t.containers) {
		return 0, containerPtr{}, tables.ErrInvalidPointer
	}
	if cp.level >= len(t.containers[idx].levels) {
		return 0, containerPtr{}, tables.ErrInvalidPointer
	}
	return idx, cp, nil
}

// PointerBits is the packed global width: container, overflow flag, level
// and slot fields.
func (t *VariableSizeDerefTable[V]) PointerBits() int { return int(t.lay.bits) }

func (t *VariableSizeDerefTable[V]) NumContainers() int { return len(t.containers) }

func (t *VariableSizeDerefTable[V]) ContainerCapacity() int { return t.containerCapacity }
