package pdcom

import (
	"bytes"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
	"github.com/mikajuvonen67/tcnopen/transport"
)

// Receive parses one frame off sock and routes it (spec.md §4.5): PULL
// requests trigger an immediate reply, cyclic frames are matched to a
// subscriber, vetted for sequence and topology, and swapped into that
// subscriber's frame buffer.
//
// Grounded on core/processing.go's dispatch shape, adapted from channel
// receive to a single synchronous socket read per call.
func (s *Session) Receive(sock transport.Socket) error {
	now := time.Now()

	n, srcIP, destIP, err := sock.Receive(s.scratch)
	if err != nil {
		if err == transport.ErrWouldBlock {
			return ErrBlock
		}
		return fmt.Errorf("pdcom: socket read: %w", err)
	}

	h, result, checkErr := pdwire.Check(s.scratch, n)
	switch result {
	case pdwire.CrcErr:
		s.Stats.NumCrcErr++
		return checkErr
	case pdwire.WireErr:
		s.Stats.NumProtErr++
		return checkErr
	}
	s.Stats.NumRcv++

	if topoMismatch(s.EtbTopoCnt, h.EtbTopoCnt) || topoMismatch(s.OpTrnTopoCnt, h.OpTrnTopoCnt) {
		s.Stats.NumTopoErr++
		return ErrTopo
	}

	if h.MsgType == pdwire.MsgPR {
		return s.handlePullRequest(h, srcIP)
	}

	return s.handleCyclicFrame(h, s.scratch[:n], srcIP, destIP, now)
}

// handlePullRequest implements spec.md §4.5 step 4: the statistics built-in
// and the general pull-reply trigger both resolve to "arm a publisher for an
// immediate out-of-cycle send".
func (s *Session) handlePullRequest(h pdwire.Header, srcIP uint32) error {
	var pub *pdqueue.Element

	if h.ComID == StatisticsPullComID {
		pub = s.SendQueue.FindByComID(GlobalStatisticsComID)
		if pub == nil {
			s.Stats.NumNoPub++
			return ErrNoPub
		}

		pub.Address.DestIP = h.ReplyIPAddress
		pdwire.InitHeader(pub.Header(), pdwire.MsgPP, s.EtbTopoCnt, s.OpTrnTopoCnt, 0, 0)

		snap := s.Snapshot()
		buf := make([]byte, statisticsWireSize)
		snap.Marshal(buf)
		if putErr := pub.Put(buf, len(buf)); putErr != nil {
			return fmt.Errorf("pdcom: snapshotting statistics: %w", putErr)
		}
	} else {
		replyComID := h.ReplyComID
		if replyComID == 0 {
			replyComID = h.ComID
		}

		pub = s.SendQueue.FindByComID(replyComID)
		if pub == nil {
			s.Stats.NumNoPub++
			return ErrNoPub
		}
	}

	pub.PullIPAddress = h.ReplyIPAddress
	if pub.PullIPAddress == 0 {
		pub.PullIPAddress = srcIP
	}
	pub.SetFlag(pdqueue.FlagReq2BSent)

	return s.SendDue()
}

// handleCyclicFrame implements spec.md §4.5 steps 5-12 for a PD/PP frame.
func (s *Session) handleCyclicFrame(h pdwire.Header, raw []byte, srcIP, destIP uint32, now time.Time) error {
	sub := s.RecvQueue.FindSubscriber(pdqueue.IncomingAddr{ComID: h.ComID, SrcIP: srcIP, DestIP: destIP})
	if sub == nil {
		s.Stats.NumNoSubs++
		return ErrNoSub
	}

	subTopoOK := true
	if sub.Address.EtbTopoCnt != 0 || sub.Address.OpTrnTopoCnt != 0 {
		subTopoOK = sub.Address.EtbTopoCnt == h.EtbTopoCnt && sub.Address.OpTrnTopoCnt == h.OpTrnTopoCnt
	}

	var (
		informUser bool
		resultErr  error
	)

	if !subTopoOK {
		// Spec step 6 skips straight to the buffer swap (step 11) on a
		// topology mismatch: dataSize/curSeqCnt are left at their prior
		// values even though sub.Frame below ends up holding the new bytes.
		s.Stats.NumTopoErr++
		sub.LastErr = ErrTopo
		resultErr = ErrTopo
		informUser = true
	} else {
		if verdict, seqErr := s.applySequenceDiscipline(sub, h, srcIP); seqErr != nil {
			return seqErr
		} else if verdict == pdqueue.Reject {
			log.WithFields(log.Fields{"comId": h.ComID, "srcIp": srcIP}).Debug("pdcom: dropping duplicate/reordered frame")
			return nil
		}

		newDataSize := int(h.DatasetLength)
		newData := raw[pdwire.HeaderSize : pdwire.HeaderSize+newDataSize]

		if sub.PktFlags.Has(pdqueue.FlagCallback) {
			switch {
			case sub.PktFlags.Has(pdqueue.FlagForceCB), sub.Flags().Has(pdqueue.FlagTimedOut):
				informUser = true
			default:
				oldData := sub.Frame[pdwire.HeaderSize : pdwire.HeaderSize+sub.DataSize]
				informUser = sub.DataSize != newDataSize || !bytes.Equal(oldData, newData)
			}
		}

		sub.DataSize = newDataSize
		sub.GrossSize = pdwire.HeaderSize + roundUp4Payload(newDataSize)

		if sub.Interval != 0 {
			sub.TimeToGo = now.Add(sub.Interval)
		}
		sub.NumRxTx++
		sub.ClearFlag(pdqueue.FlagTimedOut)
		sub.ClearFlag(pdqueue.FlagInvalidData)
		sub.LastSrcIP = srcIP
		sub.Address.DestIP = destIP
	}

	s.swapFrame(sub, h)

	if informUser && sub.PktFlags.Has(pdqueue.FlagCallback) && sub.Callback != nil {
		payload := sub.Frame[pdwire.HeaderSize : pdwire.HeaderSize+sub.DataSize]
		sub.Callback.OnPdEvent(pdInfoFromElement(sub, resultErr), payload)
	}

	return resultErr
}

// applySequenceDiscipline implements spec.md §4.5 step 7.
func (s *Session) applySequenceDiscipline(sub *pdqueue.Element, h pdwire.Header, srcIP uint32) (pdqueue.Verdict, error) {
	newSeq := h.SequenceCounter

	if newSeq == 0 {
		sub.SeqTracker.Reset(srcIP)
	}

	verdict := sub.SeqTracker.Check(srcIP, uint16(h.MsgType), newSeq)
	if verdict == pdqueue.Full {
		return verdict, pdqueue.ErrMem
	}
	if verdict == pdqueue.Reject {
		return verdict, nil
	}

	if newSeq == 0 {
		// A sender restart; gap accounting against the stale pre-restart
		// curSeqCnt would otherwise wrap NumMissed into the billions
		// (spec.md §8 scenario 5).
		sub.CurSeqCnt = 0
		return verdict, nil
	}

	switch {
	case newSeq > sub.CurSeqCnt+1:
		sub.NumMissed += newSeq - sub.CurSeqCnt - 1
	case newSeq < sub.CurSeqCnt:
		sub.NumMissed += math.MaxUint32 - sub.CurSeqCnt + newSeq
	}
	sub.CurSeqCnt = newSeq

	return verdict, nil
}

// swapFrame exchanges sub.Frame with the session's scratch buffer in O(1)
// and re-provisions the scratch so the next Receive has room to read into
// (design note in spec.md §9).
func (s *Session) swapFrame(sub *pdqueue.Element, h pdwire.Header) {
	*sub.Header() = h
	sub.Frame, s.scratch = s.scratch, sub.Frame

	if len(s.scratch) < pdwire.MaxPacketSize {
		s.scratch = make([]byte, pdwire.MaxPacketSize)
	}
}

// roundUp4Payload rounds n up to the next multiple of 4 (4-byte dataset
// alignment), mirroring pdqueue's unexported roundUp4 for the engine's own
// bookkeeping of a just-received frame.
func roundUp4Payload(n int) int {
	return (n + 3) &^ 3
}
