package pdcom

import (
	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
	"github.com/mikajuvonen67/tcnopen/transport"
)

// fakeSocket is an in-memory Socket: Send records frames, Receive replays a
// preloaded queue of inbound datagrams.
type fakeSocket struct {
	sent []sentFrame

	rxData []([]byte)
	rxSrc  []uint32
	rxDest []uint32
	rxIdx  int
}

type sentFrame struct {
	buf      []byte
	destIP   uint32
	destPort uint16
	params   transport.SendParams
}

func (f *fakeSocket) Send(buf []byte, destIP uint32, destPort uint16, params transport.SendParams) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.sent = append(f.sent, sentFrame{buf: cp, destIP: destIP, destPort: destPort, params: params})
	return nil
}

func (f *fakeSocket) Receive(buf []byte) (int, uint32, uint32, error) {
	if f.rxIdx >= len(f.rxData) {
		return 0, 0, 0, transport.ErrWouldBlock
	}
	data := f.rxData[f.rxIdx]
	src, dst := f.rxSrc[f.rxIdx], f.rxDest[f.rxIdx]
	f.rxIdx++
	return copy(buf, data), src, dst, nil
}

func (f *fakeSocket) queue(data []byte, srcIP, destIP uint32) {
	f.rxData = append(f.rxData, data)
	f.rxSrc = append(f.rxSrc, srcIP)
	f.rxDest = append(f.rxDest, destIP)
}

func (f *fakeSocket) Fd() int    { return -1 }
func (f *fakeSocket) Close() error { return nil }

// fakeTransport hands out fakeSockets, keeping every one it created reachable
// for assertions.
type fakeTransport struct {
	sockets []*fakeSocket
}

func (t *fakeTransport) OpenSocket(bindIP uint32, port uint16, mcGroup uint32) (transport.Socket, error) {
	s := &fakeSocket{}
	t.sockets = append(t.sockets, s)
	return s, nil
}

// recordingCallback captures every OnPdEvent invocation for assertions.
type recordingCallback struct {
	calls []callbackCall
}

type callbackCall struct {
	info    pdqueue.PdInfo
	payload []byte
}

func (r *recordingCallback) OnPdEvent(info pdqueue.PdInfo, payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.calls = append(r.calls, callbackCall{info: info, payload: cp})
}

// buildFrame constructs a complete, checksummed wire frame the way
// UpdateOutgoing would, for feeding into Receive in tests.
func buildFrame(msgType pdwire.MsgType, comID, etbTopo, opTrnTopo, replyComID, replyIP, seq uint32, payload []byte) []byte {
	var h pdwire.Header
	pdwire.InitHeader(&h, msgType, etbTopo, opTrnTopo, replyComID, replyIP)
	h.ComID = comID
	h.DatasetLength = uint32(len(payload))

	buf := make([]byte, pdwire.HeaderSize+len(payload))
	copy(buf[pdwire.HeaderSize:], payload)
	pdwire.UpdateOutgoing(&h, buf, seq-1)

	return buf
}
