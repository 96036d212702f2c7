package pdcom

import (
	"testing"
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
)

func newTestPublisher(comID uint32, interval time.Duration, timeToGo time.Time) *pdqueue.Element {
	e := pdqueue.NewPublisher(pdqueue.AddressTuple{ComID: comID}, interval, pdqueue.FlagDefault)
	e.TimeToGo = timeToGo
	return e
}

func TestDistributeSpreadsSlotsAndRespectsSafetyMargin(t *testing.T) {
	var q pdqueue.Queue

	base := time.Now().Add(500 * time.Millisecond)

	e1 := newTestPublisher(500, 100*time.Millisecond, base)
	e2 := newTestPublisher(501, 200*time.Millisecond, base)
	e3 := newTestPublisher(502, 200*time.Millisecond, base)
	e4 := newTestPublisher(503, 400*time.Millisecond, base)
	e5Original := base.Add(-200 * time.Millisecond)
	e5 := newTestPublisher(504, 40*time.Millisecond, e5Original)

	// Insert in reverse so the queue's head-prepend linkage iterates
	// e1, e2, e3, e4, e5 in that order.
	q.Insert(e5)
	q.Insert(e4)
	q.Insert(e3)
	q.Insert(e2)
	q.Insert(e1)

	Distribute(&q)

	slot := 8 * time.Millisecond // deltaTmax (40ms, from e5) / noOfPackets (5)

	wantE1 := base
	wantE2 := base.Add(slot)
	wantE3 := base.Add(2 * slot)
	wantE4 := base.Add(3 * slot)

	if !e1.TimeToGo.Equal(wantE1) {
		t.Errorf("e1: got %v want %v", e1.TimeToGo, wantE1)
	}
	if !e2.TimeToGo.Equal(wantE2) {
		t.Errorf("e2: got %v want %v", e2.TimeToGo, wantE2)
	}
	if !e3.TimeToGo.Equal(wantE3) {
		t.Errorf("e3: got %v want %v", e3.TimeToGo, wantE3)
	}
	if !e4.TimeToGo.Equal(wantE4) {
		t.Errorf("e4: got %v want %v", e4.TimeToGo, wantE4)
	}

	// e5's shift (4*slot = 32ms) doubled exceeds its own 40ms interval, so
	// the safety margin leaves it untouched at its original schedule.
	if !e5.TimeToGo.Equal(e5Original) {
		t.Errorf("e5: expected left at its original timeToGo %v, got %v", e5Original, e5.TimeToGo)
	}
}

func TestDistributeNoopBelowTwoCyclicPublishers(t *testing.T) {
	var q pdqueue.Queue

	original := time.Now().Add(time.Second)
	e := newTestPublisher(600, 100*time.Millisecond, original)
	q.Insert(e)

	Distribute(&q)

	if !e.TimeToGo.Equal(original) {
		t.Errorf("expected a single cyclic publisher left untouched, got %v want %v", e.TimeToGo, original)
	}
}
