package pdcom

import (
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
)

// HandleTimeouts walks the receive queue and delivers exactly one
// TimeoutErr notification per timeout episode (spec.md §4.6). A subscriber
// remains subscribed afterward; a subsequent fresh packet clears TIMED_OUT
// (pdcom/receiver.go's handleCyclicFrame).
//
// Grounded on discovery/manager.go's periodic-scan shape, adapted from
// peer-discovery aging to subscriber watchdog expiry.
func (s *Session) HandleTimeouts() {
	now := time.Now()

	s.RecvQueue.Each(func(e *pdqueue.Element) {
		if e.Interval == 0 || e.TimeToGo.IsZero() || e.TimeToGo.After(now) {
			return
		}
		if e.Flags().Has(pdqueue.FlagTimedOut) {
			return
		}
		if e.Address.ComID == GlobalStatisticsComID {
			return
		}

		s.Stats.NumTimeout++
		e.LastErr = pdqueue.ErrTimeout

		if e.PktFlags.Has(pdqueue.FlagCallback) && e.Callback != nil {
			payload := e.Frame[pdwire.HeaderSize : pdwire.HeaderSize+e.DataSize]
			e.Callback.OnPdEvent(pdInfoFromElement(e, pdqueue.ErrTimeout), payload)
		}

		e.SetFlag(pdqueue.FlagTimedOut)
	})
}
