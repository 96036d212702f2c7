// Package transport defines the narrow socket contract the PD engine
// consumes. The engine never opens a socket or touches the network itself
// (spec.md §1 names the transport an external collaborator); it only calls
// Socket.Send/Receive through a Session's socket table.
package transport

import "errors"

// ErrWouldBlock is returned by Receive when no datagram is currently
// pending, matching the engine's nonblocking dispatch model (spec.md §5,
// §4.8 BlockErr).
var ErrWouldBlock = errors.New("transport: would block")

// SendParams carries the per-send quality-of-service knobs the wire header
// has no room for (confirmed against the 40-byte layout in spec.md §6;
// TRDP_SEND_PARAM_T in the original).
type SendParams struct {
	QoS uint8
	TTL uint8
}

// Socket is one bound UDP endpoint. Elements reference it indirectly via
// SocketIdx into the session's socket table; several elements may share one
// Socket.
type Socket interface {
	// Send writes buf to destIP:destPort.
	Send(buf []byte, destIP uint32, destPort uint16, params SendParams) error

	// Receive reads one datagram into buf without blocking: if nothing is
	// pending it returns ErrWouldBlock immediately. srcIP is the packet's
	// source; destIP is the local address the packet was delivered to (the
	// joined multicast group, for a multicast socket).
	Receive(buf []byte) (n int, srcIP, destIP uint32, err error)

	// Fd returns the underlying file descriptor, for an application's
	// external select/poll set (CheckPending populates exactly this).
	Fd() int

	Close() error
}

// Transport opens sockets. The one concrete implementation this module
// ships is udp.go/udp_linux.go; tests substitute a fake.
type Transport interface {
	// OpenSocket binds bindIP:port. If mcGroup is nonzero, it also joins
	// that multicast group instead of binding bindIP directly.
	OpenSocket(bindIP uint32, port uint16, mcGroup uint32) (Socket, error)
}
