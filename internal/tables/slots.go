package tables

// slot pairs a stored value with its owner record. The owner record is the
// (key, local pointer) that allocated the slot; dereference and free accept
// only that exact pair.
type slot[V any] struct {
	owner string
	ptr   uint64
	value V
}

// slotStore is a fixed-length run of slots plus an occupancy bitmap. A set
// bit means the slot at that index holds an entry. The store is exclusively
// owned by one table instance.
type slotStore[V any] struct {
	slots  []slot[V]
	bitmap []uint64
}

func newSlotStore[V any](n int) *slotStore[V] {
	return &slotStore[V]{
		slots:  make([]slot[V], n),
		bitmap: make([]uint64, (n+63)>>6),
	}
}

func (s *slotStore[V]) occupied(pos int) bool {
	return s.bitmap[pos>>6]&(1<<(uint(pos)&63)) != 0
}

// firstFree scans [start, start+width) and returns the first empty slot,
// or -1 when the run is full.
func (s *slotStore[V]) firstFree(start, width int) int {
	for pos := start; pos < start+width; pos++ {
		if !s.occupied(pos) {
			return pos
		}
	}
	return -1
}

func (s *slotStore[V]) set(pos int, key string, p uint64, value V) {
	s.bitmap[pos>>6] |= 1 << (uint(pos) & 63)
	s.slots[pos] = slot[V]{owner: key, ptr: p, value: value}
}

func (s *slotStore[V]) clear(pos int) {
	s.bitmap[pos>>6] &^= 1 << (uint(pos) & 63)
	s.slots[pos] = slot[V]{}
}

// get reads the slot after the owner check. A mismatch is a hard failure,
// never a silent hit.
func (s *slotStore[V]) get(pos int, key string, p uint64) (V, error) {
	var zero V
	if !s.occupied(pos) {
		return zero, ErrNotAllocated
	}
	e := &s.slots[pos]
	if e.owner != key || e.ptr != p {
		return zero, ErrOwnershipMismatch
	}
	return e.value, nil
}
