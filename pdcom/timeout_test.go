package pdcom

import (
	"testing"
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
)

func TestHandleTimeoutsFiresOnceThenStaysQuiet(t *testing.T) {
	s, _ := newTestSession(t)

	sub := pdqueue.NewSubscriber(pdqueue.AddressTuple{ComID: 300}, time.Millisecond, 5*time.Millisecond, pdqueue.FlagCallback)
	cb := &recordingCallback{}
	sub.Callback = cb
	sub.TimeToGo = time.Now().Add(-time.Millisecond) // already overdue
	s.RecvQueue.Insert(sub)

	s.HandleTimeouts()
	s.HandleTimeouts()
	s.HandleTimeouts()

	if len(cb.calls) != 1 {
		t.Fatalf("expected exactly one timeout callback, got %d", len(cb.calls))
	}
	if s.Stats.NumTimeout != 1 {
		t.Errorf("expected NumTimeout=1, got %d", s.Stats.NumTimeout)
	}
	if !sub.Flags().Has(pdqueue.FlagTimedOut) {
		t.Error("expected TIMED_OUT set on the subscriber")
	}
}

func TestHandleTimeoutsIgnoresNonCyclicSubscribers(t *testing.T) {
	s, _ := newTestSession(t)

	sub := pdqueue.NewSubscriber(pdqueue.AddressTuple{ComID: 301}, 0, 0, pdqueue.FlagCallback)
	cb := &recordingCallback{}
	sub.Callback = cb
	s.RecvQueue.Insert(sub)

	s.HandleTimeouts()

	if len(cb.calls) != 0 {
		t.Errorf("expected no timeout notification for a non-cyclic subscriber, got %d", len(cb.calls))
	}
}

func TestHandleTimeoutsExcludesGlobalStatistics(t *testing.T) {
	s, _ := newTestSession(t)

	sub := pdqueue.NewSubscriber(pdqueue.AddressTuple{ComID: GlobalStatisticsComID}, time.Millisecond, 5*time.Millisecond, pdqueue.FlagCallback)
	cb := &recordingCallback{}
	sub.Callback = cb
	sub.TimeToGo = time.Now().Add(-time.Millisecond)
	s.RecvQueue.Insert(sub)

	s.HandleTimeouts()

	if len(cb.calls) != 0 {
		t.Errorf("expected the statistics built-in excluded from timeout notification, got %d calls", len(cb.calls))
	}
	if s.Stats.NumTimeout != 0 {
		t.Errorf("expected NumTimeout untouched for the statistics built-in, got %d", s.Stats.NumTimeout)
	}
}
