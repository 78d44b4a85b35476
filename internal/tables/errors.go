package tables

import "errors"

// Failure taxonomy shared by every dereference table. Capacity exhaustion
// is an operational signal; the other three indicate a stale or foreign
// (key, pointer) pair and must never be swallowed.
var (
	ErrCapacityExhausted = errors.New("no free slot reachable for key")
	ErrInvalidPointer    = errors.New("tiny pointer does not decode under table width")
	ErrNotAllocated      = errors.New("slot holds no entry")
	ErrOwnershipMismatch = errors.New("slot entry belongs to a different key or pointer")
)

// Construction validation errors.
var (
	ErrNumSlotsLessThan1  = errors.New("num slots must be greater than 0")
	ErrDeltaOutOfRange    = errors.New("delta must be in (0, 1]")
	ErrBudgetLessThan10   = errors.New("n must be at least 10")
	ErrDeltaNotFractional = errors.New("delta must be strictly between 0 and 1")
)
