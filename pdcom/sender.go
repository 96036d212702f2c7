package pdcom

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
	"github.com/mikajuvonen67/tcnopen/transport"
)

// SendDue walks the send queue once, emitting every element due for
// transmission (spec.md §4.4). A single publisher's failure never stops the
// pass; the returned error, if any, is the last non-nil one observed.
//
// Grounded on core/processing.go's dispatch-loop shape: iterate, act
// best-effort, keep going.
func (s *Session) SendDue() error {
	var lastErr error
	now := time.Now()

	e := s.SendQueue.Head()
	for e != nil {
		next := e.Next

		if err := s.sendOne(e, now); err != nil {
			lastErr = err
		}

		if e.MsgType() == pdwire.MsgPR {
			s.SendQueue.DeleteElement(e)
			s.releaseElementSocket(e)
			e.Dispose()
		}

		e = next
	}

	return lastErr
}

// sendOne implements spec.md §4.4 steps 1-5 for a single element.
func (s *Session) sendOne(e *pdqueue.Element, now time.Time) error {
	due := (e.Interval != 0 && !e.TimeToGo.After(now)) || e.Flags().Has(pdqueue.FlagReq2BSent)
	if !due {
		return nil
	}

	if e.Flags().Has(pdqueue.FlagInvalidData) {
		s.advanceTimer(e, now, false)
		return nil
	}

	wasPullReply := e.Flags().Has(pdqueue.FlagReq2BSent) && e.MsgType() == pdwire.MsgPD
	if wasPullReply {
		e.SetMsgType(pdwire.MsgPP)
	}

	err := s.emit(e)

	if wasPullReply {
		e.SetMsgType(pdwire.MsgPD)
	}
	s.advanceTimer(e, now, wasPullReply)

	return err
}

// emit recomputes the outgoing header, vets topology, honors redundant
// suppression, notifies the publisher-side callback and hands the frame to
// the transport collaborator.
func (s *Session) emit(e *pdqueue.Element) error {
	h := e.Header()

	seqPtr := &e.CurSeqCnt
	if h.MsgType == pdwire.MsgPP {
		seqPtr = &e.CurSeqCnt4Pull
	}
	*seqPtr = pdwire.UpdateOutgoing(h, e.Frame, *seqPtr)

	if topoMismatch(s.EtbTopoCnt, h.EtbTopoCnt) || topoMismatch(s.OpTrnTopoCnt, h.OpTrnTopoCnt) {
		e.LastErr = ErrTopo
		s.Stats.NumTopoErr++
		return ErrTopo
	}

	if e.SocketIdx < 0 {
		log.WithFields(log.Fields{"comId": e.Address.ComID}).Warn("pdcom: publisher has no bound socket, skipping")
		return nil
	}

	if e.PktFlags.Has(pdqueue.FlagRedundant) && e.RedundantGrp != 0 && s.IsRedundantFollower(e.RedundantGrp) {
		return nil
	}

	if e.PktFlags.Has(pdqueue.FlagCallback) && e.Callback != nil {
		e.Callback.OnPdEvent(pdInfoFromElement(e, nil), e.Frame[pdwire.HeaderSize:pdwire.HeaderSize+e.DataSize])
	}

	destIP := e.Address.DestIP
	if e.Address.McGroup != 0 {
		destIP = e.Address.McGroup
	}
	if e.PullIPAddress != 0 {
		destIP = e.PullIPAddress
		e.PullIPAddress = 0
	}

	sock := s.socketAt(e.SocketIdx)
	if sock == nil {
		e.LastErr = ErrIO
		return ErrIO
	}

	if err := sock.Send(e.Frame[:e.GrossSize], destIP, s.DefaultPort, transport.SendParams{QoS: e.Address.QoS, TTL: e.Address.TTL}); err != nil {
		e.LastErr = ErrIO
		log.WithFields(log.Fields{"comId": e.Address.ComID, "error": err}).Warn("pdcom: send failed")
		return ErrIO
	}

	s.Stats.NumSend++
	e.NumRxTx++
	return nil
}

// advanceTimer implements step 5's timer bookkeeping: a restored pull-reply
// never shifts the cyclic schedule; otherwise the interval is added once,
// snapping to now+interval if that still isn't in the future (preventing a
// catch-up storm after the process stalls).
func (s *Session) advanceTimer(e *pdqueue.Element, now time.Time, wasPullReply bool) {
	if !wasPullReply && e.Interval != 0 {
		e.TimeToGo = e.TimeToGo.Add(e.Interval)
		if !e.TimeToGo.After(now) {
			e.TimeToGo = now.Add(e.Interval)
		}
	}
	e.ClearFlag(pdqueue.FlagReq2BSent)
}

// topoMismatch implements the Table A.5 rule: a nonzero counter on both
// sides that disagrees is an error; either side being zero (wildcard) or
// both agreeing is fine.
func topoMismatch(sessionVal, frameVal uint32) bool {
	return sessionVal != 0 && frameVal != 0 && sessionVal != frameVal
}

// releaseElementSocket gives up this element's socket reference, for the
// one-shot PULL-request teardown in SendDue step 6.
func (s *Session) releaseElementSocket(e *pdqueue.Element) {
	if e.SocketIdx >= 0 {
		s.ReleaseSocket(e.SocketIdx)
	}
}

// pdInfoFromElement builds the callback payload from an element's current
// header and addressing (spec.md §6 callback surface).
func pdInfoFromElement(e *pdqueue.Element, resultCode error) pdqueue.PdInfo {
	h := e.Header()
	return pdqueue.PdInfo{
		ComID:        e.Address.ComID,
		SrcIP:        e.LastSrcIP,
		DestIP:       e.Address.DestIP,
		EtbTopoCnt:   h.EtbTopoCnt,
		OpTrnTopoCnt: h.OpTrnTopoCnt,
		MsgType:      h.MsgType,
		SeqCount:     h.SequenceCounter,
		ProtoVersion: h.ProtocolVersion,
		ReplyComID:   h.ReplyComID,
		ReplyIP:      h.ReplyIPAddress,
		UserRef:      e.UserRef,
		ResultCode:   resultCode,
	}
}
