package pdcom

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/transport"
)

// CheckListenSocks drains every ready socket by calling Receive in a loop
// while it keeps returning nil, stopping at the first non-nil result
// (spec.md §4.8). ErrBlock/ErrNoSub are quiet outcomes of normal operation;
// anything else is logged at warning level, but either way the loop stops
// after classifying it once.
func (s *Session) CheckListenSocks(ready []transport.Socket) {
	for _, sock := range ready {
		for {
			err := s.Receive(sock)
			if err == nil {
				continue
			}

			if !errors.Is(err, ErrBlock) && !errors.Is(err, ErrNoSub) {
				log.WithFields(log.Fields{"error": err}).Warn("pdcom: Receive reported an error")
			}
			break
		}
	}
}

// Run drives the engine's four process entry points in the order the
// single-threaded cooperative model expects (spec.md §5): wait up to the
// smaller of the next due time and upperBound, then CheckListenSocks,
// SendDue and HandleTimeouts once per tick. It is a convenience loop for
// callers that don't want to hand-roll their own select/poll wait; the core
// engine works equally well driven directly.
//
// Grounded on core/core.go's checkConvergenceReceivers select loop, adapted
// from goroutine-driven channel fan-in to a single synchronous ticking
// worker, per the engine's single-threaded invariant.
func (s *Session) Run(stop <-chan struct{}, upperBound time.Duration) {
	for {
		sockets, nextJob := s.CheckPending()

		wait := upperBound
		if !nextJob.IsZero() {
			if d := time.Until(nextJob); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		s.CheckListenSocks(sockets)
		if err := s.SendDue(); err != nil {
			log.WithFields(log.Fields{"error": err}).Debug("pdcom: SendDue pass ended with an error")
		}
		s.HandleTimeouts()
	}
}
