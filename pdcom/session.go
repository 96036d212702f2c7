// Package pdcom is the PD engine: the sender, receiver, timeout and pending
// scanners, the socket dispatcher and the send-time distribution shaper that
// together drive a session's two pdqueue.Queues (spec.md §4.4–§4.9).
package pdcom

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mikajuvonen67/tcnopen/pdqueue"
	"github.com/mikajuvonen67/tcnopen/pdwire"
	"github.com/mikajuvonen67/tcnopen/transport"
)

// socketEntry is one row of the session-wide socket table, refcounted so a
// socket is released only once every element bound to it is gone (spec.md §5
// resource policy).
type socketEntry struct {
	socket   transport.Socket
	refCount int
}

// Session is the engine's single piece of mutable state: both queues, the
// socket table, session-level topology counters, statistics and the
// receive-side scratch buffer. It is mutated only by the application's
// single worker thread calling SendDue/Receive/HandleTimeouts/CheckPending/
// CheckListenSocks — no internal locking (spec.md §5).
//
// Grounded on core/core.go's Core struct shape, adapted from the DTN core's
// goroutine-driven convergence layer to the PD engine's single-threaded,
// caller-driven entry points.
type Session struct {
	EtbTopoCnt   uint32
	OpTrnTopoCnt uint32
	OwnIPAddr    uint32

	SendQueue *pdqueue.Queue
	RecvQueue *pdqueue.Queue

	Transport   transport.Transport
	DefaultPort uint16

	sockets []socketEntry
	scratch []byte // pNewFrame: session-owned, swapped into a subscriber on accept

	Stats Statistics

	redundancy map[uint32]bool // groupID -> this session currently leads

	NextJob time.Time

	started time.Time
}

// NewSession creates an empty session bound to the given train-topology
// counters (0 = wildcard, per spec.md §3) and transport collaborator.
func NewSession(etbTopoCnt, opTrnTopoCnt, ownIPAddr uint32, tr transport.Transport, defaultPort uint16) *Session {
	return &Session{
		EtbTopoCnt:   etbTopoCnt,
		OpTrnTopoCnt: opTrnTopoCnt,
		OwnIPAddr:    ownIPAddr,
		SendQueue:    &pdqueue.Queue{},
		RecvQueue:    &pdqueue.Queue{},
		Transport:    tr,
		DefaultPort:  defaultPort,
		scratch:      make([]byte, pdwire.MaxPacketSize),
		redundancy:   make(map[uint32]bool),
		started:      time.Now(),
	}
}

// BindSocket opens (or, if sharing were tracked by address, would reuse) a
// socket for the given local address and returns its index into the
// session's socket table, for an element's SocketIdx.
func (s *Session) BindSocket(bindIP uint32, port uint16, mcGroup uint32) (int, error) {
	sock, err := s.Transport.OpenSocket(bindIP, port, mcGroup)
	if err != nil {
		return -1, fmt.Errorf("pdcom: opening socket: %w", err)
	}

	s.sockets = append(s.sockets, socketEntry{socket: sock, refCount: 1})
	idx := len(s.sockets) - 1

	log.WithFields(log.Fields{"socketIdx": idx, "port": port, "mcGroup": mcGroup}).Debug("pdcom: socket bound")
	return idx, nil
}

// AddSocketRef increments the refcount of an already-bound socket, for a
// second element sharing the same socketIdx.
func (s *Session) AddSocketRef(idx int) {
	if idx < 0 || idx >= len(s.sockets) {
		return
	}
	s.sockets[idx].refCount++
}

// ReleaseSocket decrements a socket's refcount, closing it once no element
// references it any longer.
func (s *Session) ReleaseSocket(idx int) {
	if idx < 0 || idx >= len(s.sockets) {
		return
	}

	entry := &s.sockets[idx]
	if entry.refCount <= 0 || entry.socket == nil {
		return
	}

	entry.refCount--
	if entry.refCount == 0 {
		if err := entry.socket.Close(); err != nil {
			log.WithFields(log.Fields{"socketIdx": idx, "error": err}).Warn("pdcom: socket close failed")
		}
		entry.socket = nil
	}
}

// socketAt returns the socket bound at idx, or nil if idx is out of range or
// already released.
func (s *Session) socketAt(idx int) transport.Socket {
	if idx < 0 || idx >= len(s.sockets) {
		return nil
	}
	return s.sockets[idx].socket
}

// SetRedundant sets this session's leader/follower state for a redundancy
// group. A follower's publishers in that group are silently suppressed in
// SendDue (spec.md §4.4 step 4); supplemented from the original's
// TRDP_RED_STATE_T, kept session-wide rather than per-socket (SPEC_FULL.md §4
// open-question decision).
func (s *Session) SetRedundant(groupID uint32, leader bool) {
	s.redundancy[groupID] = leader
}

// IsRedundantFollower reports whether this session is currently a follower
// (not the leader) of the given redundancy group. A group never explicitly
// set defaults to leader (not suppressed), matching a lone publisher with no
// configured peer.
func (s *Session) IsRedundantFollower(groupID uint32) bool {
	leader, known := s.redundancy[groupID]
	return known && !leader
}

// UpTime reports how long this session has existed, for the statistics
// envelope (SPEC_FULL.md §4).
func (s *Session) UpTime() time.Duration {
	return time.Since(s.started)
}
