package pingpong

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned once the channel has been shut down and no
	// hand-off is pending for the caller.
	ErrClosed = errors.New("pingpong: exchange channel closed")

	// ErrSyncFault matches every *SyncFault through errors.Is.
	ErrSyncFault = errors.New("pingpong: sync fault")

	// ErrResponderLeak is returned when the responder does not terminate
	// within the shutdown grace period.
	ErrResponderLeak = errors.New("pingpong: responder did not terminate")

	// ErrInvalidDuration is returned for a non-positive benchmark duration.
	ErrInvalidDuration = errors.New("pingpong: duration must be positive")
)

// FaultKind tells which part of the exchange protocol was violated.
type FaultKind int

const (
	// FaultRoundMismatch is an out-of-order delivery: the consumed round is
	// not the one the consumer expected.
	FaultRoundMismatch FaultKind = iota
	// FaultNotOwner is a hand-off attempted by the party not owning the slot.
	FaultNotOwner
	// FaultDoubleHandoff is a hand-off issued while the previous one is
	// still unconsumed.
	FaultDoubleHandoff
)

func (k FaultKind) String() string {
	switch k {
	case FaultRoundMismatch:
		return "round mismatch"
	case FaultNotOwner:
		return "slot owner violation"
	case FaultDoubleHandoff:
		return "double hand-off"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// SyncFault is a broken exchange invariant. It is always fatal: once a
// fault is recorded the channel refuses every further operation.
type SyncFault struct {
	Kind     FaultKind
	Party    Party
	Expected uint64
	Got      uint64
}

func (f *SyncFault) Error() string {
	switch f.Kind {
	case FaultNotOwner:
		return fmt.Sprintf("%s sync error: hand-off of round %d while %s owns the slot", f.Party, f.Got, f.Party.peer())
	case FaultDoubleHandoff:
		return fmt.Sprintf("%s sync error: hand-off of round %d before round %d was consumed", f.Party, f.Got, f.Expected)
	default:
		return fmt.Sprintf("%s sync error: expect %d, got %d", f.Party, f.Expected, f.Got)
	}
}

func (f *SyncFault) Is(target error) bool { return target == ErrSyncFault }

// ResourceError reports a side activity of the benchmark that could not be
// started. The measurement is invalid and the run is not retried.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *ResourceError) Unwrap() error { return e.Err }
