package main

import (
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/mikajuvonen67/tcnopen/pdcom"
	"github.com/mikajuvonen67/tcnopen/pdqueue"
)

// eventHub fans out accepted/timed-out PdInfo events to every connected
// WebSocket client. It implements pdqueue.Callback so it can be installed as
// a subscriber's Callback directly.
//
// Grounded on agent/websocket_agent.go's upgrader-plus-handler shape, adapted
// from a single bidirectional agent connection to a broadcast-only fan-out.
type eventHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newEventHub() *eventHub {
	return &eventHub{
		clients: make(map[*websocket.Conn]bool),
	}
}

type wsEvent struct {
	ComID      uint32 `json:"comId"`
	SrcIP      uint32 `json:"srcIp"`
	DestIP     uint32 `json:"destIp"`
	MsgType    string `json:"msgType"`
	SeqCount   uint32 `json:"seqCount"`
	Error      string `json:"error,omitempty"`
	PayloadLen int    `json:"payloadLen"`
}

// OnPdEvent satisfies pdqueue.Callback, broadcasting every event to connected
// clients. Writes are best-effort and a failed write just drops that client.
// Each write runs synchronously on the engine's thread with no write
// deadline, so a client that stops reading can hold up the engine until its
// write completes or fails.
func (h *eventHub) OnPdEvent(info pdqueue.PdInfo, payload []byte) {
	ev := wsEvent{
		ComID:      info.ComID,
		SrcIP:      info.SrcIP,
		DestIP:     info.DestIP,
		MsgType:    info.MsgType.String(),
		SeqCount:   info.SeqCount,
		PayloadLen: len(payload),
	}
	if info.ResultCode != nil {
		ev.Error = info.ResultCode.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			log.WithError(err).Debug("trdpdemo: dropping a slow/closed WebSocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *eventHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("trdpdemo: failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

// attachEventHub installs hub as the Callback on every element carrying
// FlagCallback, so the live stream mirrors whatever the batch file already
// asked the engine to notify on.
func attachEventHub(session *pdcom.Session, hub *eventHub) {
	attach := func(e *pdqueue.Element) {
		if e.PktFlags.Has(pdqueue.FlagCallback) {
			e.Callback = hub
		}
	}
	session.SendQueue.Each(attach)
	session.RecvQueue.Each(attach)
}
