// Package pdwire implements the wire encoding of the PD (Process Data) header:
// fixed-width, network byte order, CRC32/IEEE-802.3 protected.
package pdwire

import "encoding/binary"

// MsgType identifies the semantic kind of a PD telegram.
type MsgType uint16

const (
	// MsgPD is a cyclic publish telegram ('Pd').
	MsgPD MsgType = 0x5064
	// MsgPP is a pull-reply telegram ('Pp'), emitted once in response to a MsgPR.
	MsgPP MsgType = 0x5070
	// MsgPR is a pull-request telegram ('Pr').
	MsgPR MsgType = 0x5072
	// MsgPE is an error telegram ('Pe').
	MsgPE MsgType = 0x5065
)

func (t MsgType) String() string {
	switch t {
	case MsgPD:
		return "PD"
	case MsgPP:
		return "PP"
	case MsgPR:
		return "PR"
	case MsgPE:
		return "PE"
	default:
		return "unknown"
	}
}

func (t MsgType) valid() bool {
	switch t {
	case MsgPD, MsgPP, MsgPR, MsgPE:
		return true
	default:
		return false
	}
}

const (
	// HeaderSize is the fixed PD header length in bytes, including the FCS.
	HeaderSize = 40

	// fcsSize is the width of the trailing frameCheckSum field.
	fcsSize = 4

	// MaxDataSize is the largest dataset a PD telegram may carry.
	MaxDataSize = 1432

	// MaxPacketSize is the largest complete frame (header + data) this engine accepts.
	MaxPacketSize = HeaderSize + MaxDataSize

	// ProtocolVersion is this engine's protocol version, compared under ProtocolVersionMask.
	ProtocolVersion uint16 = 0x0100

	// ProtocolVersionMask masks the comparison to the major version (high byte).
	ProtocolVersionMask uint16 = 0xFF00
)

// Header is the fixed 40-byte PD header, held in network byte order on the wire
// and decoded into host fields here.
type Header struct {
	SequenceCounter uint32
	ProtocolVersion uint16
	MsgType         MsgType
	ComID           uint32
	EtbTopoCnt      uint32
	OpTrnTopoCnt    uint32
	DatasetLength   uint32
	Reserved        uint32
	ReplyComID      uint32
	ReplyIPAddress  uint32
	FrameCheckSum   uint32
}

// Marshal writes the header in wire order into buf, which must be at least
// HeaderSize bytes. The FCS field is written as-is (zero until computed by
// computeFCS); it does not compute the checksum.
func (h *Header) Marshal(buf []byte) {
	_ = buf[HeaderSize-1]

	binary.BigEndian.PutUint32(buf[0:4], h.SequenceCounter)
	binary.BigEndian.PutUint16(buf[4:6], h.ProtocolVersion)
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.MsgType))
	binary.BigEndian.PutUint32(buf[8:12], h.ComID)
	binary.BigEndian.PutUint32(buf[12:16], h.EtbTopoCnt)
	binary.BigEndian.PutUint32(buf[16:20], h.OpTrnTopoCnt)
	binary.BigEndian.PutUint32(buf[20:24], h.DatasetLength)
	binary.BigEndian.PutUint32(buf[24:28], h.Reserved)
	binary.BigEndian.PutUint32(buf[28:32], h.ReplyComID)
	binary.BigEndian.PutUint32(buf[32:36], h.ReplyIPAddress)
	toLE32(buf[36:40], h.FrameCheckSum)
}

// Unmarshal reads the header out of buf, which must be at least HeaderSize bytes.
func Unmarshal(buf []byte) Header {
	_ = buf[HeaderSize-1]

	return Header{
		SequenceCounter: binary.BigEndian.Uint32(buf[0:4]),
		ProtocolVersion: binary.BigEndian.Uint16(buf[4:6]),
		MsgType:         MsgType(binary.BigEndian.Uint16(buf[6:8])),
		ComID:           binary.BigEndian.Uint32(buf[8:12]),
		EtbTopoCnt:      binary.BigEndian.Uint32(buf[12:16]),
		OpTrnTopoCnt:    binary.BigEndian.Uint32(buf[16:20]),
		DatasetLength:   binary.BigEndian.Uint32(buf[20:24]),
		Reserved:        binary.BigEndian.Uint32(buf[24:28]),
		ReplyComID:      binary.BigEndian.Uint32(buf[28:32]),
		ReplyIPAddress:  binary.BigEndian.Uint32(buf[32:36]),
		FrameCheckSum:   fromLE32(buf[36:40]),
	}
}

// toLE32 and fromLE32 are the single site responsible for the FCS's
// little-endian storage, independent of every other field's network byte order.
func toLE32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

func fromLE32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
