//go:build linux
// +build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// applySocketOptions sets SO_REUSEADDR so the demo CLI can rebind a port
// across quick restarts without waiting out TIME_WAIT. Grounded on the
// teacher's dialControl pattern for Linux-specific socket tuning
// (pkg/cla/mtcp/client_dial_linux.go), adapted from TCP keepalive options to
// the one option a UDP socket actually benefits from here.
func applySocketOptions(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	if ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// rawFd extracts the socket's file descriptor for an application's external
// select/poll set.
func rawFd(conn *net.UDPConn) (int, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	var fd int
	if ctrlErr := rawConn.Control(func(f uintptr) { fd = int(f) }); ctrlErr != nil {
		return -1, ctrlErr
	}
	return fd, nil
}
