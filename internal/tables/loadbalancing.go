package tables

import (
	"github.com/Meesho/BharatMLStack/tinyptr/internal/hashing"
	"github.com/Meesho/BharatMLStack/tinyptr/internal/maths"
)

// LoadBalancingTable is the single-hash building block. The store is split
// into buckets of bucketSize slots; a key hashes to exactly one bucket and
// the tiny pointer is the slot index inside it, so a pointer is
// ceil(log2(bucketSize)) bits regardless of table size.
//
// Single-writer: the caller serializes access to one instance.
type LoadBalancingTable[V any] struct {
	bucketSize int
	numBuckets int
	pBits      int
	store      *slotStore[V]
}

// NewLoadBalancingTable sizes buckets from delta and rounds the backing
// store up to a whole number of buckets, which may exceed numSlots.
func NewLoadBalancingTable[V any](numSlots int, delta float64) (*LoadBalancingTable[V], error) {
	if numSlots <= 0 {
		return nil, ErrNumSlotsLessThan1
	}
	if delta <= 0 || delta > 1 {
		return nil, ErrDeltaOutOfRange
	}
	bucketSize := maths.LoadBalanceBucketSpan(delta)
	numBuckets := maths.CeilDiv(numSlots, bucketSize)
	return &LoadBalancingTable[V]{
		bucketSize: bucketSize,
		numBuckets: numBuckets,
		pBits:      maths.CeilLog2(bucketSize),
		store:      newSlotStore[V](numBuckets * bucketSize),
	}, nil
}

// Allocate places value in the first empty slot of the key's bucket.
// A full bucket reports ErrCapacityExhausted; the caller decides whether
// to fall back.
func (t *LoadBalancingTable[V]) Allocate(key string, value V) (uint64, error) {
	start := hashing.Bucket(hashing.RoleBucket, key, t.numBuckets) * t.bucketSize
	pos := t.store.firstFree(start, t.bucketSize)
	if pos < 0 {
		return 0, ErrCapacityExhausted
	}
	p := uint64(pos - start)
	t.store.set(pos, key, p, value)
	return p, nil
}

func (t *LoadBalancingTable[V]) Dereference(key string, p uint64) (V, error) {
	pos, err := t.decode(key, p)
	if err != nil {
		var zero V
		return zero, err
	}
	return t.store.get(pos, key, p)
}

func (t *LoadBalancingTable[V]) Free(key string, p uint64) error {
	pos, err := t.decode(key, p)
	if err != nil {
		return err
	}
	if _, err := t.store.get(pos, key, p); err != nil {
		return err
	}
	t.store.clear(pos)
	return nil
}

// decode recomputes the physical slot for (key, p). No auxiliary index is
// consulted; the pointer is meaningless without its key.
func (t *LoadBalancingTable[V]) decode(key string, p uint64) (int, error) {
	if p >= uint64(t.bucketSize) {
		return 0, ErrInvalidPointer
	}
	return hashing.Bucket(hashing.RoleBucket, key, t.numBuckets)*t.bucketSize + int(p), nil
}

func (t *LoadBalancingTable[V]) PointerBits() int { return t.pBits }

func (t *LoadBalancingTable[V]) BucketSize() int { return t.bucketSize }

func (t *LoadBalancingTable[V]) NumBuckets() int { return t.numBuckets }

// NumSlots is the backed length after rounding up to whole buckets.
func (t *LoadBalancingTable[V]) NumSlots() int { return len(t.store.slots) }

// BucketOf exposes the bucket a key hashes to, for callers that need to
// reason about placement (tests, load shaping).
func (t *LoadBalancingTable[V]) BucketOf(key string) int {
	return hashing.Bucket(hashing.RoleBucket, key, t.numBuckets)
}
