package pdwire

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// CheckResult classifies a received frame; it never panics and never blocks.
type CheckResult int

const (
	// NoErr is returned when the header is structurally and semantically valid.
	NoErr CheckResult = iota
	// CrcErr means the frame check sum did not match.
	CrcErr
	// WireErr means the size, protocol version, dataset length or msgType was invalid.
	WireErr
)

func (r CheckResult) String() string {
	switch r {
	case NoErr:
		return "NoErr"
	case CrcErr:
		return "CrcErr"
	case WireErr:
		return "WireErr"
	default:
		return "unknown"
	}
}

// MinHeaderSize is the smallest accepted frame: the header alone, no data.
const MinHeaderSize = HeaderSize

// InitHeader writes the addressing and type fields of a new outgoing header.
// It does not touch the sequence counter and does not compute the FCS — that
// is UpdateOutgoing's job, called once per emission.
func InitHeader(h *Header, msgType MsgType, etbTopo, opTrnTopo, replyComID, replyIP uint32) {
	h.MsgType = msgType
	h.ProtocolVersion = ProtocolVersion
	h.EtbTopoCnt = etbTopo
	h.OpTrnTopoCnt = opTrnTopo
	h.ReplyComID = replyComID
	h.ReplyIPAddress = replyIP
	h.Reserved = 0
}

// UpdateOutgoing advances the sequence counter appropriate to the header's
// current MsgType (curSeqCnt4Pull for PP, curSeqCnt otherwise — the caller
// passes in whichever counter applies and gets back the advanced value),
// writes it into the header and recomputes the FCS over buf. buf must already
// hold HeaderSize bytes from a prior Marshal; it is re-marshalled in place.
func UpdateOutgoing(h *Header, buf []byte, seqCnt uint32) uint32 {
	seqCnt++
	h.SequenceCounter = seqCnt
	h.Marshal(buf)
	h.FrameCheckSum = computeFCS(buf)
	toLE32(buf[HeaderSize-fcsSize:HeaderSize], h.FrameCheckSum)
	return seqCnt
}

// Check validates a received frame's header against the wire contract:
// overall size, FCS, masked protocol version, dataset length bound and
// msgType enumeration. observedSize is the number of bytes actually read off
// the socket (header + data, no trailer).
func Check(buf []byte, observedSize int) (Header, CheckResult, error) {
	var errs error

	if observedSize < MinHeaderSize || observedSize > MaxPacketSize {
		errs = multierror.Append(errs, newWireError("frame size %d out of range [%d,%d]", observedSize, MinHeaderSize, MaxPacketSize))
		return Header{}, WireErr, errs
	}

	h := Unmarshal(buf)

	wantFCS := computeFCS(buf)
	if wantFCS != h.FrameCheckSum {
		return h, CrcErr, newWireError("frame check sum mismatch: got %08x want %08x", h.FrameCheckSum, wantFCS)
	}

	if h.ProtocolVersion&ProtocolVersionMask != ProtocolVersion&ProtocolVersionMask {
		errs = multierror.Append(errs, newWireError("protocol version %04x does not match engine %04x under mask %04x", h.ProtocolVersion, ProtocolVersion, ProtocolVersionMask))
	}

	if h.DatasetLength > MaxDataSize {
		errs = multierror.Append(errs, newWireError("dataset length %d exceeds max %d", h.DatasetLength, MaxDataSize))
	}

	if int(HeaderSize+h.DatasetLength) > observedSize {
		errs = multierror.Append(errs, newWireError("dataset length %d exceeds observed frame size %d", h.DatasetLength, observedSize))
	}

	if !h.MsgType.valid() {
		errs = multierror.Append(errs, newWireError("unknown msgType %04x", uint16(h.MsgType)))
	}

	if errs != nil {
		return h, WireErr, errs
	}
	return h, NoErr, nil
}

func newWireError(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
