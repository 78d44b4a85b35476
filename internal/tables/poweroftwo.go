package tables

import (
	"github.com/Meesho/BharatMLStack/tinyptr/internal/hashing"
	"github.com/Meesho/BharatMLStack/tinyptr/internal/maths"
)

// PowerOfTwoChoicesDerefTable hashes each key to two candidate buckets and
// places it in the one with lower occupancy. The tiny pointer packs the
// chosen candidate as one bit above the in-bucket slot index.
//
// Single-writer: the caller serializes access to one instance.
type PowerOfTwoChoicesDerefTable[V any] struct {
	bucketSize int
	numBuckets int
	slotBits   int
	slotMask   uint64
	occupancy  []int
	store      *slotStore[V]
}

func NewPowerOfTwoChoicesDerefTable[V any](numSlots int) (*PowerOfTwoChoicesDerefTable[V], error) {
	if numSlots <= 0 {
		return nil, ErrNumSlotsLessThan1
	}
	bucketSize := maths.TwoChoiceBucketSpan(numSlots)
	numBuckets := maths.CeilDiv(numSlots, bucketSize)
	if numBuckets < 2 {
		// two-choice needs two distinct candidates
		numBuckets = 2
	}
	slotBits := maths.CeilLog2(bucketSize)
	return &PowerOfTwoChoicesDerefTable[V]{
		bucketSize: bucketSize,
		numBuckets: numBuckets,
		slotBits:   slotBits,
		slotMask:   1<<uint(slotBits) - 1,
		occupancy:  make([]int, numBuckets),
		store:      newSlotStore[V](numBuckets * bucketSize),
	}, nil
}

// candidateBuckets hashes key to its two candidates. When both hashes land
// on the same bucket the second candidate is nudged one bucket forward.
func (t *PowerOfTwoChoicesDerefTable[V]) candidateBuckets(key string) (int, int) {
	b1 := hashing.Bucket(hashing.RoleChoiceOne, key, t.numBuckets)
	b2 := hashing.Bucket(hashing.RoleChoiceTwo, key, t.numBuckets)
	if b1 == b2 {
		b2 = (b1 + 1) % t.numBuckets
	}
	return b1, b2
}

// Allocate places value in the lower-occupancy candidate; ties keep the
// first choice. A full chosen bucket fails, it does not retry the other.
func (t *PowerOfTwoChoicesDerefTable[V]) Allocate(key string, value V) (uint64, error) {
	b1, b2 := t.candidateBuckets(key)
	chosen, choice := b1, uint64(0)
	if t.occupancy[b2] < t.occupancy[b1] {
		chosen, choice = b2, 1
	}
	if t.occupancy[chosen] >= t.bucketSize {
		return 0, ErrCapacityExhausted
	}
	start := chosen * t.bucketSize
	pos := t.store.firstFree(start, t.bucketSize)
	if pos < 0 {
		// counters guarantee a free slot above
		return 0, ErrCapacityExhausted
	}
	p := choice<<uint(t.slotBits) | uint64(pos-start)
	t.store.set(pos, key, p, value)
	t.occupancy[chosen]++
	return p, nil
}

func (t *PowerOfTwoChoicesDerefTable[V]) Dereference(key string, p uint64) (V, error) {
	pos, err := t.decode(key, p)
	if err != nil {
		var zero V
		return zero, err
	}
	return t.store.get(pos, key, p)
}

func (t *PowerOfTwoChoicesDerefTable[V]) Free(key string, p uint64) error {
	pos, err := t.decode(key, p)
	if err != nil {
		return err
	}
	if _, err := t.store.get(pos, key, p); err != nil {
		return err
	}
	t.store.clear(pos)
	t.occupancy[pos/t.bucketSize]--
	return nil
}

// decode splits p into choice bit and slot index and recomputes the bucket
// through the same two-hash rule used at allocate time.
func (t *PowerOfTwoChoicesDerefTable[V]) decode(key string, p uint64) (int, error) {
	if p>>uint(t.slotBits) > 1 {
		return 0, ErrInvalidPointer
	}
	slotIdx := p & t.slotMask
	if slotIdx >= uint64(t.bucketSize) {
		return 0, ErrInvalidPointer
	}
	b1, b2 := t.candidateBuckets(key)
	bucket := b1
	if p>>uint(t.slotBits) == 1 {
		bucket = b2
	}
	return bucket*t.bucketSize + int(slotIdx), nil
}

// PointerBits is one choice bit plus the in-bucket slot bits.
func (t *PowerOfTwoChoicesDerefTable[V]) PointerBits() int { return t.slotBits + 1 }

func (t *PowerOfTwoChoicesDerefTable[V]) BucketSize() int { return t.bucketSize }

func (t *PowerOfTwoChoicesDerefTable[V]) NumBuckets() int { return t.numBuckets }

func (t *PowerOfTwoChoicesDerefTable[V]) NumSlots() int { return len(t.store.slots) }
