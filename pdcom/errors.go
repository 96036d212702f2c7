package pdcom

import "errors"

// Error kinds specific to the engine layer (spec.md §7); pdqueue's
// ErrParam/ErrMem/ErrNoData/ErrTimeout are propagated as-is where they
// originate from a queue-level call (Put/Get), wrapped with %w where extra
// context helps.
var (
	// ErrTopo is a topology-counter mismatch (session- or subscriber-level).
	ErrTopo = errors.New("pdcom: topology counter mismatch")
	// ErrNoSub is a valid frame matching no subscriber.
	ErrNoSub = errors.New("pdcom: no matching subscriber")
	// ErrNoPub is a PULL request whose replyComId matches no publisher.
	ErrNoPub = errors.New("pdcom: no matching publisher for pull reply")
	// ErrIO is a transport-level send failure.
	ErrIO = errors.New("pdcom: transport send failed")
	// ErrBlock means a nonblocking socket has no more frames pending.
	ErrBlock = errors.New("pdcom: no data pending")
)
