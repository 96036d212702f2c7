package pdcom

import (
	"testing"
	"time"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
)

func newTestSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	s := NewSession(0, 0, 0x0A000001, tr, 17224)
	return s, tr
}

func TestSendDueEmitsDueCyclicPublisher(t *testing.T) {
	s, tr := newTestSession(t)
	idx, err := s.BindSocket(0, 17224, 0)
	if err != nil {
		t.Fatalf("BindSocket failed: %v", err)
	}

	e := pdqueue.NewPublisher(pdqueue.AddressTuple{ComID: 100, DestIP: 0x0A000002}, time.Millisecond, pdqueue.FlagDefault)
	e.SocketIdx = idx
	if err := e.Put([]byte("abcd"), 4); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e.TimeToGo = time.Now().Add(-time.Millisecond) // already due

	s.SendQueue.Insert(e)

	if err := s.SendDue(); err != nil {
		t.Fatalf("SendDue returned error: %v", err)
	}

	if len(tr.sockets[idx].sent) != 1 {
		t.Fatalf("expected exactly one frame sent, got %d", len(tr.sockets[idx].sent))
	}
	if s.Stats.NumSend != 1 {
		t.Errorf("expected NumSend=1, got %d", s.Stats.NumSend)
	}
	if e.CurSeqCnt != 1 {
		t.Errorf("expected CurSeqCnt=1 after first emission, got %d", e.CurSeqCnt)
	}
	if !e.TimeToGo.After(time.Now()) {
		t.Error("expected timeToGo advanced into the future")
	}
}

func TestSendDueSkipsInvalidData(t *testing.T) {
	s, tr := newTestSession(t)
	idx, _ := s.BindSocket(0, 17224, 0)

	e := pdqueue.NewPublisher(pdqueue.AddressTuple{ComID: 101}, time.Millisecond, pdqueue.FlagDefault)
	e.SocketIdx = idx
	e.TimeToGo = time.Now().Add(-time.Millisecond)
	s.SendQueue.Insert(e)

	if err := s.SendDue(); err != nil {
		t.Fatalf("SendDue returned error: %v", err)
	}
	if len(tr.sockets[idx].sent) != 0 {
		t.Errorf("expected no frame sent for an INVALID_DATA publisher, got %d", len(tr.sockets[idx].sent))
	}
}

func TestSendDueRedundantFollowerSuppressed(t *testing.T) {
	s, tr := newTestSession(t)
	idx, _ := s.BindSocket(0, 17224, 0)
	s.SetRedundant(7, false) // this session is a follower

	e := pdqueue.NewPublisher(pdqueue.AddressTuple{ComID: 102}, time.Millisecond, pdqueue.FlagRedundant)
	e.SocketIdx = idx
	e.RedundantGrp = 7
	if err := e.Put([]byte("x"), 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e.TimeToGo = time.Now().Add(-time.Millisecond)
	s.SendQueue.Insert(e)

	if err := s.SendDue(); err != nil {
		t.Fatalf("SendDue returned error: %v", err)
	}
	if len(tr.sockets[idx].sent) != 0 {
		t.Error("expected a redundant follower's publisher to be suppressed")
	}
}

func TestSendDueRemovesOneShotPullRequest(t *testing.T) {
	s, tr := newTestSession(t)
	idx, _ := s.BindSocket(0, 17224, 0)

	e := pdqueue.NewPullRequest(pdqueue.AddressTuple{ComID: 31}, 35, 0x0A000009)
	e.SocketIdx = idx
	e.PullIPAddress = 0x0A000009
	s.SendQueue.Insert(e)

	if s.SendQueue.Len() != 1 {
		t.Fatalf("setup: expected one element in send queue")
	}

	if err := s.SendDue(); err != nil {
		t.Fatalf("SendDue returned error: %v", err)
	}

	if s.SendQueue.Len() != 0 {
		t.Errorf("expected the one-shot PR element removed after its single emission, len=%d", s.SendQueue.Len())
	}
	if len(tr.sockets[idx].sent) != 1 {
		t.Errorf("expected exactly one PR frame sent, got %d", len(tr.sockets[idx].sent))
	}
	if !e.Disposed() {
		t.Error("expected the PR element disposed after SendDue")
	}
}

func TestSendDuePullReplySwapRestoresMsgTypeAndLeavesScheduleUntouched(t *testing.T) {
	s, tr := newTestSession(t)
	idx, _ := s.BindSocket(0, 17224, 0)

	interval := 100 * time.Millisecond
	e := pdqueue.NewPublisher(pdqueue.AddressTuple{ComID: 35}, interval, pdqueue.FlagDefault)
	e.SocketIdx = idx
	if err := e.Put([]byte("stat"), 4); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	original := time.Now().Add(interval)
	e.TimeToGo = original // not yet due on its own cyclic schedule
	e.SetFlag(pdqueue.FlagReq2BSent)
	s.SendQueue.Insert(e)

	if err := s.SendDue(); err != nil {
		t.Fatalf("SendDue returned error: %v", err)
	}

	if len(tr.sockets[idx].sent) != 1 {
		t.Fatalf("expected the pull reply emitted, got %d frames", len(tr.sockets[idx].sent))
	}

	sentHeader, _, err := pdwire.Check(tr.sockets[idx].sent[0].buf, len(tr.sockets[idx].sent[0].buf))
	if err != nil {
		t.Fatalf("sent frame failed Check: %v", err)
	}
	if sentHeader.MsgType != pdwire.MsgPP {
		t.Errorf("expected the wire frame to carry MsgPP, got %v", sentHeader.MsgType)
	}
	if e.MsgType() != pdwire.MsgPD {
		t.Errorf("expected msgType restored to PD after emission, got %v", e.MsgType())
	}
	if !e.TimeToGo.Equal(original) {
		t.Errorf("expected timeToGo untouched by a pull-reply emission, got %v want %v", e.TimeToGo, original)
	}
	if e.Flags().Has(pdqueue.FlagReq2BSent) {
		t.Error("expected REQ_2B_SENT cleared after emission")
	}
}
