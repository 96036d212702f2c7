package pdcom

import (
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/transport"
)

// CheckPending rebuilds Session.NextJob as the earliest due time across both
// queues (spec.md §4.7), and returns the distinct sockets bound to a
// subscriber so the caller can hand them to its own select/poll wait. This
// replaces the original's raw fd_set/maxFd pair with the idiomatic Go
// equivalent: a slice the caller ranges over (each Socket also exposes Fd()
// for an application wanting a literal poll set).
func (s *Session) CheckPending() (sockets []transport.Socket, nextJob time.Time) {
	var earliest time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}

	s.SendQueue.Each(func(e *pdqueue.Element) {
		if e.Interval == 0 {
			return
		}
		consider(e.TimeToGo)
	})

	seen := make(map[int]bool)
	s.RecvQueue.Each(func(e *pdqueue.Element) {
		if e.Interval != 0 && !e.Flags().Has(pdqueue.FlagTimedOut) {
			consider(e.TimeToGo)
		}

		if e.SocketIdx < 0 || seen[e.SocketIdx] {
			return
		}
		seen[e.SocketIdx] = true
		if sock := s.socketAt(e.SocketIdx); sock != nil {
			sockets = append(sockets, sock)
		}
	})

	s.NextJob = earliest
	return sockets, earliest
}
