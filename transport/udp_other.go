//go:build !linux
// +build !linux

package transport

import "net"

// applySocketOptions is a no-op outside Linux: SO_REUSEADDR tuning is a
// best-effort nicety, not a correctness requirement.
func applySocketOptions(conn *net.UDPConn) error { return nil }

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
