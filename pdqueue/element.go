// Package pdqueue holds the per-publisher/per-subscriber element record and
// the send/receive queues of such elements.
package pdqueue

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/pdwire"
)

// TimedOutBehavior governs what Get returns for a subscriber once its
// watchdog has fired, recovered from the original's TRDP_TO_BEHAVIOR_T.
type TimedOutBehavior int

const (
	// BehaviorInvalid returns TimeoutErr from Get until a fresh frame arrives (spec default).
	BehaviorInvalid TimedOutBehavior = iota
	// BehaviorSetToZero zeroes the stale payload and returns it with NoErr.
	BehaviorSetToZero
	// BehaviorKeepLastValue returns the stale payload as-is with NoErr.
	BehaviorKeepLastValue
)

// AddressTuple identifies a publisher or subscriber's wire addressing.
type AddressTuple struct {
	ComID        uint32
	EtbTopoCnt   uint32
	OpTrnTopoCnt uint32
	SrcIP        uint32 // optional source filter, 0 = accept any
	DestIP       uint32 // unicast destination or multicast group
	McGroup      uint32 // 0 if unicast
	QoS          uint8
	TTL          uint8
}

// Marshaller optionally transcodes an element's application-level payload to
// and from wire bytes. It is an external collaborator (spec.md §1); the
// engine never interprets payload bytes itself.
type Marshaller interface {
	Marshall(refCon any, data []byte, buf []byte) (n int, err error)
	Unmarshall(refCon any, buf []byte, out []byte) (n int, err error)
}

// Callback is the per-element notification capability; it is advisory and
// its return value, if any, is ignored by the engine.
type Callback interface {
	OnPdEvent(info PdInfo, payload []byte)
}

// PdInfo mirrors the wire header fields relevant to a callback, plus
// engine-assigned metadata (spec.md §6 callback surface).
type PdInfo struct {
	ComID        uint32
	SrcIP        uint32
	DestIP       uint32
	EtbTopoCnt   uint32
	OpTrnTopoCnt uint32
	MsgType      pdwire.MsgType
	SeqCount     uint32
	ProtoVersion uint16
	ReplyComID   uint32
	ReplyIP      uint32
	UserRef      any
	ResultCode   error
}

// Element is the per-publisher/per-subscriber record. It is owned
// exclusively by the queue it is linked into and mutated only by the
// engine's single worker (spec.md §5).
type Element struct {
	Next *Element // singly-linked queue pointer

	generation uint64 // bumped on disposal; replaces the original's raw magic sentinel
	disposed   bool

	Address       AddressTuple
	PullIPAddress uint32 // one-shot override for the next send

	Interval      time.Duration // 0 = pull-only/one-shot
	TimeToGo      time.Time
	TimeoutLimit  time.Duration // subscriber only
	RedundantGrp  uint32        // 0 = not part of a redundancy group
	TimeoutPolicy TimedOutBehavior

	PktFlags  PktFlags
	privFlags PrivFlags

	Frame     []byte // header + padded data, owned by this element
	DataSize  int
	GrossSize int
	header    pdwire.Header

	CurSeqCnt     uint32 // outgoing PD sequence, or incoming accepted sequence
	CurSeqCnt4Pull uint32 // outgoing PP sequence, tracked separately

	SeqTracker *SeqTracker // subscriber only: per-source last-seen sequence

	UpdPkts   uint32
	GetPkts   uint32
	NumRxTx   uint32
	NumMissed uint32
	LastErr   error
	LastSrcIP uint32

	SocketIdx int // index into the session's socket table, -1 if unbound

	Callback   Callback
	UserRef    any
	Marshaller Marshaller
}

// MsgType is re-exported so callers needn't import pdwire just to compare
// against an Element's current wire message type.
type MsgType = pdwire.MsgType

// MsgType returns the element's current wire message type.
func (e *Element) MsgType() MsgType { return e.header.MsgType }

// SetMsgType overwrites the element's current wire message type, e.g. the
// PD<->PP swap around a PULL-reply emission (spec.md §4.4 step 3/5).
func (e *Element) SetMsgType(t MsgType) { e.header.MsgType = t }

// NewPublisher creates an element for a cyclic (interval>0) or pull-only
// (interval==0) publisher.
func NewPublisher(addr AddressTuple, interval time.Duration, flags PktFlags) *Element {
	e := &Element{
		Address:   addr,
		Interval:  interval,
		PktFlags:  flags,
		SocketIdx: -1,
		privFlags: FlagInvalidData,
	}
	pdwire.InitHeader(&e.header, pdwire.MsgPD, addr.EtbTopoCnt, addr.OpTrnTopoCnt, 0, 0)
	e.header.ComID = addr.ComID
	e.Frame = make([]byte, pdwire.HeaderSize)
	e.GrossSize = pdwire.HeaderSize
	if interval > 0 {
		e.TimeToGo = time.Now().Add(interval)
	}
	return e
}

// NewSubscriber creates an element for a cyclic-timeout-checked subscriber.
func NewSubscriber(addr AddressTuple, interval, timeout time.Duration, flags PktFlags) *Element {
	e := &Element{
		Address:      addr,
		Interval:     interval,
		TimeoutLimit: timeout,
		PktFlags:     flags,
		SocketIdx:    -1,
		privFlags:    FlagInvalidData,
		SeqTracker:   NewSeqTracker(),
	}
	e.header.MsgType = pdwire.MsgPD
	e.Frame = make([]byte, pdwire.HeaderSize)
	e.GrossSize = pdwire.HeaderSize
	return e
}

// NewPullRequest creates a one-shot PR element: interval 0, removed by
// SendDue after its single emission (spec.md §4.4 step 6).
func NewPullRequest(addr AddressTuple, replyComID, replyIP uint32) *Element {
	e := &Element{
		Address:   addr,
		SocketIdx: -1,
		privFlags: FlagReq2BSent, // no payload to validate; sent on the next SendDue pass
	}
	pdwire.InitHeader(&e.header, pdwire.MsgPR, addr.EtbTopoCnt, addr.OpTrnTopoCnt, replyComID, replyIP)
	e.header.ComID = addr.ComID
	e.Frame = make([]byte, pdwire.HeaderSize)
	e.GrossSize = pdwire.HeaderSize
	return e
}

// Flags returns the element's private flags.
func (e *Element) Flags() PrivFlags { return e.privFlags }

// SetFlag sets bits of the private flag set.
func (e *Element) SetFlag(f PrivFlags) { e.privFlags |= f }

// ClearFlag clears bits of the private flag set.
func (e *Element) ClearFlag(f PrivFlags) { e.privFlags &^= f }

// Header returns a pointer to the element's cached wire header, kept in sync
// with Frame by Put/UpdateOutgoing/the receiver's buffer swap.
func (e *Element) Header() *pdwire.Header { return &e.header }

// Dispose invalidates the element: any further use via a stale reference is
// caught by Generation no longer matching. Grounded on the design note in
// spec.md §9 (generation counter replacing the raw magic sentinel).
func (e *Element) Dispose() {
	e.disposed = true
	e.generation++
	e.Frame = nil
	e.SeqTracker = nil
}

// Generation returns the element's current generation; holders of a stale
// reference can detect disposal by observing it change.
func (e *Element) Generation() uint64 { return e.generation }

// Disposed reports whether Dispose has been called.
func (e *Element) Disposed() bool { return e.disposed }

// roundUp4 rounds n up to the next multiple of 4, as the wire format pads
// the dataset to 4-byte alignment.
func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// Put updates an element's payload (spec.md §4.2).
//
// If data is nil and size is 0, this just (re)validates a never-data
// publisher: INVALID_DATA is cleared and UpdPkts is bumped without touching
// the buffer, so a publisher that legitimately carries no payload still
// emits.
func (e *Element) Put(data []byte, size int) error {
	if e == nil {
		return fmt.Errorf("%w: nil element", ErrParam)
	}

	if e.DataSize == 0 && size == 0 {
		e.ClearFlag(FlagInvalidData)
		e.UpdPkts++
		return nil
	}

	needed := pdwire.HeaderSize + roundUp4(size)
	if len(e.Frame) < needed {
		buf := make([]byte, needed)
		copy(buf, e.Frame[:pdwire.HeaderSize])
		e.Frame = buf
	}

	actualSize := size
	if e.Marshaller != nil && e.PktFlags.Has(FlagMarshall) {
		n, err := e.Marshaller.Marshall(e.UserRef, data[:size], e.Frame[pdwire.HeaderSize:])
		if err != nil {
			return fmt.Errorf("%w: marshall failed: %v", ErrMem, err)
		}
		actualSize = n
	} else {
		if size > pdwire.MaxDataSize {
			return fmt.Errorf("%w: size %d exceeds max %d", ErrParam, size, pdwire.MaxDataSize)
		}
		copy(e.Frame[pdwire.HeaderSize:], data[:size])
	}

	if actualSize > pdwire.MaxDataSize {
		return fmt.Errorf("%w: marshalled size %d exceeds max %d", ErrParam, actualSize, pdwire.MaxDataSize)
	}

	e.DataSize = actualSize
	e.GrossSize = pdwire.HeaderSize + roundUp4(actualSize)
	e.header.DatasetLength = uint32(actualSize)

	e.ClearFlag(FlagInvalidData)
	e.UpdPkts++

	log.WithFields(log.Fields{
		"comId":    e.Address.ComID,
		"dataSize": actualSize,
	}).Debug("pdqueue: element payload updated")

	return nil
}

// Get copies (or unmarshalls) an element's current payload out to the
// caller (spec.md §4.2).
func (e *Element) Get(out []byte) (n int, err error) {
	if e.privFlags.Has(FlagInvalidData) {
		return 0, ErrNoData
	}

	if e.privFlags.Has(FlagTimedOut) {
		switch e.TimeoutPolicy {
		case BehaviorSetToZero:
			for i := range out {
				out[i] = 0
			}
			e.GetPkts++
			return e.DataSize, nil
		case BehaviorKeepLastValue:
			// fall through to the normal copy/unmarshal path below
		default:
			return 0, ErrTimeout
		}
	}

	if e.Marshaller != nil && e.PktFlags.Has(FlagMarshall) {
		n, err = e.Marshaller.Unmarshall(e.UserRef, e.Frame[pdwire.HeaderSize:pdwire.HeaderSize+e.DataSize], out)
	} else {
		n = copy(out, e.Frame[pdwire.HeaderSize:pdwire.HeaderSize+e.DataSize])
	}
	if err == nil {
		e.GetPkts++
	}
	return
}
