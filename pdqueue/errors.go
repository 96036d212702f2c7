package pdqueue

import "errors"

// Sentinel errors for Element.Put/Get, part of the error taxonomy in
// spec.md §7. Errors further up the engine (pdcom) wrap these with errors.Is
// where they originate from a queue-level failure.
var (
	// ErrParam is a null or oversize input; caller-recoverable.
	ErrParam = errors.New("pdqueue: invalid parameter")
	// ErrMem is an allocation or capacity failure; bubbled up.
	ErrMem = errors.New("pdqueue: allocation failed")
	// ErrNoData means Get was called before any valid Put.
	ErrNoData = errors.New("pdqueue: no valid data")
	// ErrTimeout means Get was called on a subscriber whose watchdog fired
	// and whose TimedOutBehavior is BehaviorInvalid.
	ErrTimeout = errors.New("pdqueue: data timed out")
)
