package tables

import (
	"errors"
	"fmt"
	"math"
)

// FixedSizeDerefTable composes a load-balancing primary with a
// power-of-two-choices secondary that absorbs its overflow. The top bit of
// a pointer names the origin table; for a fixed delta the pointer width
// does not grow with n.
type FixedSizeDerefTable[V any] struct {
	n             int
	delta         float64
	primary       *LoadBalancingTable[V]
	secondary     *PowerOfTwoChoicesDerefTable[V]
	pBits         int
	secondaryFlag uint64
}

// NewFixedSizeDerefTable splits the n-slot budget: ceil(n*delta/2) slots go
// to the secondary, the rest to a primary sized for an overflow rate of
// about delta^2.
func NewFixedSizeDerefTable[V any](n int, delta float64) (*FixedSizeDerefTable[V], error) {
	if n < 10 {
		return nil, ErrBudgetLessThan10
	}
	if delta <= 0 || delta >= 1 {
		return nil, ErrDeltaNotFractional
	}
	secondarySlots := int(math.Ceil(float64(n) * delta / 2))
	primarySlots := n - secondarySlots
	primary, err := NewLoadBalancingTable[V](primarySlots, delta*delta)
	if err != nil {
		return nil, err
	}
	secondary, err := NewPowerOfTwoChoicesDerefTable[V](secondarySlots)
	if err != nil {
		return nil, err
	}
	pBits := primary.PointerBits()
	if secondary.PointerBits() > pBits {
		pBits = secondary.PointerBits()
	}
	pBits++ // origin flag
	return &FixedSizeDerefTable[V]{
		n:             n,
		delta:         delta,
		primary:       primary,
		secondary:     secondary,
		pBits:         pBits,
		secondaryFlag: 1 << uint(pBits-1),
	}, nil
}

// Allocate tries the primary and falls back to the secondary on capacity
// exhaustion. Both tables full is the rare tail case and surfaces as
// capacity exhaustion to the caller.
func (t *FixedSizeDerefTable[V]) Allocate(key string, value V) (uint64, error) {
	p, err := t.primary.Allocate(key, value)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrCapacityExhausted) {
		return 0, err
	}
	p, err = t.secondary.Allocate(key, value)
	if err == nil {
		return t.secondaryFlag | p, nil
	}
	if errors.Is(err, ErrCapacityExhausted) {
		return 0, fmt.Errorf("primary and secondary tables full: %w", ErrCapacityExhausted)
	}
	return 0, err
}

func (t *FixedSizeDerefTable[V]) Dereference(key string, p uint64) (V, error) {
	isSecondary, local, err := t.decode(p)
	if err != nil {
		var zero V
		return zero, err
	}
	if isSecondary {
		return t.secondary.Dereference(key, local)
	}
	return t.primary.Dereference(key, local)
}

func (t *FixedSizeDerefTable[V]) Free(key string, p uint64) error {
	isSecondary, local, err := t.decode(p)
	if err != nil {
		return err
	}
	if isSecondary {
		return t.secondary.Free(key, local)
	}
	return t.primary.Free(key, local)
}

// decode strips the origin flag and returns the origin table's local
// pointer.
func (t *FixedSizeDerefTable[V]) decode(p uint64) (bool, uint64, error) {
	if p >= 1<<uint(t.pBits) {
		return false, 0, ErrInvalidPointer
	}
	if p&t.secondaryFlag != 0 {
		return true, p &^ t.secondaryFlag, nil
	}
	return false, p, nil
}

// PointerBits is the full packed width: origin flag plus the wider of the
// two local pointers. Independent of n for a fixed delta.
func (t *FixedSizeDerefTable[V]) PointerBits() int { return t.pBits }
