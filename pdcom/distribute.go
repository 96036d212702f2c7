package pdcom

import (
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
)

// Distribute respaces send times across cyclic publishers so they don't
// cluster at the same instant (spec.md §4.9), called after a publish or
// unpublish changes the send queue's set of cyclic elements.
//
// Grounded on original_source/trdp/src/common/trdp_pdcom.c's
// trdp_pdDistribute: the smallest interval divided by the number of cyclic
// publishers gives the slot width, and the latest scheduled time is the base
// every shift starts from; the 2x factor on the comparison is a safety margin against
// shifting an element past its own deadline (SPEC_FULL.md §6 open-question
// decision — the full interval, not half of it, is what's compared).
func Distribute(sendQueue *pdqueue.Queue) {
	var deltaTmax time.Duration
	var tNull time.Time
	noOfPackets := 0

	sendQueue.Each(func(e *pdqueue.Element) {
		if e.Interval == 0 {
			return
		}
		noOfPackets++
		if deltaTmax == 0 || e.Interval < deltaTmax {
			deltaTmax = e.Interval
		}
		if e.TimeToGo.After(tNull) {
			tNull = e.TimeToGo
		}
	})

	if noOfPackets < 2 || deltaTmax == 0 {
		return
	}

	slot := deltaTmax / time.Duration(noOfPackets)

	packetIndex := 0
	sendQueue.Each(func(e *pdqueue.Element) {
		if e.Interval == 0 {
			return
		}
		defer func() { packetIndex++ }()

		shift := slot * time.Duration(packetIndex)
		if 2*shift > e.Interval {
			return
		}
		e.TimeToGo = tNull.Add(shift)
	})
}
