package pdwire

import "testing"

func TestInitHeaderUpdateOutgoingIdempotent(t *testing.T) {
	buf := make([]byte, HeaderSize)

	var h Header
	InitHeader(&h, MsgPD, 7, 9, 0, 0)
	h.ComID = 42
	h.DatasetLength = 0
	h.Marshal(buf)

	seq := UpdateOutgoing(&h, buf, 0)
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}

	first := h
	firstFCS := h.FrameCheckSum

	seq = UpdateOutgoing(&h, buf, seq)
	if seq != 2 {
		t.Fatalf("expected sequence 2, got %d", seq)
	}

	if h.FrameCheckSum == firstFCS {
		t.Error("FCS did not change even though the sequence counter advanced")
	}

	h.SequenceCounter = first.SequenceCounter
	h.FrameCheckSum = 0
	h.Marshal(buf)
	if got := computeFCS(buf); got != firstFCS {
		t.Errorf("header fields besides sequence/FCS are not stable across UpdateOutgoing calls")
	}
}

func TestCheckAcceptsValidFrame(t *testing.T) {
	buf := make([]byte, HeaderSize)

	var h Header
	InitHeader(&h, MsgPD, 0, 0, 0, 0)
	h.ComID = 1
	h.DatasetLength = 0
	h.Marshal(buf)
	UpdateOutgoing(&h, buf, 0)

	if _, result, err := Check(buf, HeaderSize); result != NoErr || err != nil {
		t.Fatalf("expected NoErr, got %v (%v)", result, err)
	}
}

func TestCheckDetectsCrcErr(t *testing.T) {
	buf := make([]byte, HeaderSize)

	var h Header
	InitHeader(&h, MsgPD, 0, 0, 0, 0)
	h.Marshal(buf)
	UpdateOutgoing(&h, buf, 0)

	buf[0] ^= 0xFF // corrupt the sequence counter byte, FCS no longer matches

	if _, result, _ := Check(buf, HeaderSize); result != CrcErr {
		t.Fatalf("expected CrcErr, got %v", result)
	}
}

func TestCheckDetectsWireErr(t *testing.T) {
	t.Run("bad msgType", func(t *testing.T) {
		buf := make([]byte, HeaderSize)
		var h Header
		InitHeader(&h, MsgPD, 0, 0, 0, 0)
		h.Marshal(buf)
		UpdateOutgoing(&h, buf, 0)

		h.MsgType = 0x1234
		h.Marshal(buf)
		h.FrameCheckSum = computeFCS(buf)
		toLE32(buf[HeaderSize-fcsSize:HeaderSize], h.FrameCheckSum)

		if _, result, _ := Check(buf, HeaderSize); result != WireErr {
			t.Fatalf("expected WireErr, got %v", result)
		}
	})

	t.Run("dataset length over max", func(t *testing.T) {
		buf := make([]byte, HeaderSize)
		var h Header
		InitHeader(&h, MsgPD, 0, 0, 0, 0)
		h.DatasetLength = MaxDataSize + 1
		h.Marshal(buf)
		h.FrameCheckSum = computeFCS(buf)
		toLE32(buf[HeaderSize-fcsSize:HeaderSize], h.FrameCheckSum)

		if _, result, _ := Check(buf, HeaderSize); result != WireErr {
			t.Fatalf("expected WireErr, got %v", result)
		}
	})

	t.Run("frame too short", func(t *testing.T) {
		if _, result, _ := Check(make([]byte, HeaderSize), HeaderSize-1); result != WireErr {
			t.Fatalf("expected WireErr, got %v", result)
		}
	})

	t.Run("protocol version mismatch under mask", func(t *testing.T) {
		buf := make([]byte, HeaderSize)
		var h Header
		InitHeader(&h, MsgPD, 0, 0, 0, 0)
		h.ProtocolVersion = 0x0200
		h.Marshal(buf)
		h.FrameCheckSum = computeFCS(buf)
		toLE32(buf[HeaderSize-fcsSize:HeaderSize], h.FrameCheckSum)

		if _, result, _ := Check(buf, HeaderSize); result != WireErr {
			t.Fatalf("expected WireErr, got %v", result)
		}
	})
}

func TestCheckBoundaryDatasetLength(t *testing.T) {
	buf := make([]byte, MaxPacketSize)
	var h Header
	InitHeader(&h, MsgPD, 0, 0, 0, 0)
	h.DatasetLength = MaxDataSize
	h.Marshal(buf)
	h.FrameCheckSum = computeFCS(buf)
	toLE32(buf[HeaderSize-fcsSize:HeaderSize], h.FrameCheckSum)

	if _, result, err := Check(buf, MaxPacketSize); result != NoErr {
		t.Fatalf("expected NoErr at exactly MaxDataSize, got %v (%v)", result, err)
	}
}
