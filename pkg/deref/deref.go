package deref

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Meesho/BharatMLStack/tinyptr/internal/containers"
	"github.com/Meesho/BharatMLStack/tinyptr/internal/tables"
	"github.com/Meesho/BharatMLStack/tinyptr/pkg/metrics"
)

// PointerType selects the dereference-table construction. The scheme set
// is closed: fixed-width pointers from the composite table, or pointers
// whose width tracks container size from the multi-level table.
type PointerType int

const (
	Fixed PointerType = iota
	Variable
)

// DefaultDelta is the wasted-space fraction used for fixed tables when the
// config leaves Delta zero.
const DefaultDelta = 0.1

// Error kinds of the common contract. CapacityExhausted is operational;
// the other three mean the caller presented a stale or foreign
// (key, pointer) pair.
var (
	ErrCapacityExhausted = tables.ErrCapacityExhausted
	ErrInvalidPointer    = tables.ErrInvalidPointer
	ErrNotAllocated      = tables.ErrNotAllocated
	ErrOwnershipMismatch = tables.ErrOwnershipMismatch

	ErrUnknownPointerType = errors.New("unknown pointer type")
)

// Table is the common allocate/dereference/free contract. A returned
// pointer is only meaningful together with the key that allocated it; the
// caller owns any key-to-pointer index it needs.
type Table[V any] interface {
	Allocate(key string, value V) (uint64, error)
	Dereference(key string, p uint64) (V, error)
	Free(key string, p uint64) error
	PointerBits() int
}

type Config struct {
	// N is the slot budget (Fixed) or item budget (Variable).
	N           int
	PointerType PointerType
	// Delta applies to Fixed only; DefaultDelta when zero.
	Delta float64
}

// Stats holds one table's operation counters. Updated atomically so a
// console logger may sample them while the single writer runs.
type Stats struct {
	Allocates           atomic.Uint64
	AllocateFailures    atomic.Uint64
	Dereferences        atomic.Uint64
	DereferenceFailures atomic.Uint64
	Frees               atomic.Uint64
	FreeFailures        atomic.Uint64
	Live                atomic.Int64
}

// DerefTable fronts one of the two constructions behind the common
// contract and normalizes their distinct capacity-exhaustion wraps into
// the single ErrCapacityExhausted kind.
//
// Same single-writer rule as the tables underneath: one goroutine, or an
// external lock per instance.
type DerefTable[V any] struct {
	inner   Table[V]
	kind    PointerType
	stats   Stats
	kindTag []string
}

func New[V any](config Config) (*DerefTable[V], error) {
	var (
		inner Table[V]
		tag   string
	)
	switch config.PointerType {
	case Fixed:
		delta := config.Delta
		if delta == 0 {
			delta = DefaultDelta
		}
		ft, err := tables.NewFixedSizeDerefTable[V](config.N, delta)
		if err != nil {
			return nil, err
		}
		inner, tag = ft, metrics.TAG_VALUE_FIXED
	case Variable:
		vt, err := containers.NewVariableSizeDerefTable[V](config.N)
		if err != nil {
			return nil, err
		}
		inner, tag = vt, metrics.TAG_VALUE_VARIABLE
	default:
		return nil, ErrUnknownPointerType
	}
	return &DerefTable[V]{
		inner:   inner,
		kind:    config.PointerType,
		kindTag: metrics.GetTableKindTag(tag),
	}, nil
}

func (t *DerefTable[V]) Allocate(key string, value V) (uint64, error) {
	start := time.Now()
	p, err := t.inner.Allocate(key, value)
	if err != nil {
		t.stats.AllocateFailures.Add(1)
		if metrics.Enabled() {
			metrics.Incr(metrics.KEY_ALLOCATE_FAILURES, t.kindTag)
		}
		if errors.Is(err, ErrCapacityExhausted) {
			// both constructions wrap exhaustion with their own context;
			// callers get the one kind
			return 0, ErrCapacityExhausted
		}
		return 0, err
	}
	t.stats.Allocates.Add(1)
	t.stats.Live.Add(1)
	if metrics.Enabled() {
		metrics.Incr(metrics.KEY_ALLOCATES, t.kindTag)
		metrics.Timing(metrics.KEY_ALLOCATE_LATENCY, time.Since(start), t.kindTag)
	}
	return p, nil
}

func (t *DerefTable[V]) Dereference(key string, p uint64) (V, error) {
	start := time.Now()
	v, err := t.inner.Dereference(key, p)
	if err != nil {
		t.stats.DereferenceFailures.Add(1)
		if metrics.Enabled() {
			metrics.Incr(metrics.KEY_DEREFERENCE_FAILURES, t.kindTag)
		}
		return v, err
	}
	t.stats.Dereferences.Add(1)
	if metrics.Enabled() {
		metrics.Incr(metrics.KEY_DEREFERENCES, t.kindTag)
		metrics.Timing(metrics.KEY_DEREFERENCE_LATENCY, time.Since(start), t.kindTag)
	}
	return v, nil
}

func (t *DerefTable[V]) Free(key string, p uint64) error {
	if err := t.inner.Free(key, p); err != nil {
		t.stats.FreeFailures.Add(1)
		if metrics.Enabled() {
			metrics.Incr(metrics.KEY_FREE_FAILURES, t.kindTag)
		}
		return err
	}
	t.stats.Frees.Add(1)
	t.stats.Live.Add(-1)
	if metrics.Enabled() {
		metrics.Incr(metrics.KEY_FREES, t.kindTag)
	}
	return nil
}

func (t *DerefTable[V]) PointerBits() int { return t.inner.PointerBits() }

func (t *DerefTable[V]) Kind() PointerType { return t.kind }

// Snapshot copies the counters for logging.
func (t *DerefTable[V]) Snapshot() metrics.TableSnapshot {
	return metrics.TableSnapshot{
		Allocates:           t.stats.Allocates.Load(),
		AllocateFailures:    t.stats.AllocateFailures.Load(),
		Dereferences:        t.stats.Dereferences.Load(),
		DereferenceFailures: t.stats.DereferenceFailures.Load(),
		Frees:               t.stats.Frees.Load(),
		FreeFailures:        t.stats.FreeFailures.Load(),
		Live:                t.stats.Live.Load(),
	}
}
