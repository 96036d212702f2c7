package transport

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// udpTransport is the default Transport: one net.UDPConn per OpenSocket
// call, grounded on the teacher's MTCPServer/MTCPClient connection lifecycle
// (cla/mtcp/server.go, cla/mtcp/client.go) adapted from connection-oriented
// TCP to a bound, possibly-multicast UDP socket.
type udpTransport struct{}

// NewUDPTransport returns the default, net.ListenUDP-backed Transport.
func NewUDPTransport() Transport {
	return udpTransport{}
}

func (udpTransport) OpenSocket(bindIP uint32, port uint16, mcGroup uint32) (Socket, error) {
	var conn *net.UDPConn
	var err error

	if mcGroup != 0 {
		conn, err = net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: ipFromUint32(mcGroup), Port: int(port)})
	} else {
		conn, err = net.ListenUDP("udp4", &net.UDPAddr{IP: ipFromUint32(bindIP), Port: int(port)})
	}
	if err != nil {
		return nil, err
	}

	if optErr := applySocketOptions(conn); optErr != nil {
		log.WithFields(log.Fields{
			"port":  port,
			"error": optErr,
		}).Warn("transport: socket option tuning failed, continuing with defaults")
	}

	return &UDPSocket{conn: conn}, nil
}

// UDPSocket wraps a bound net.UDPConn as a Socket.
type UDPSocket struct {
	conn *net.UDPConn
}

func (s *UDPSocket) Send(buf []byte, destIP uint32, destPort uint16, _ SendParams) error {
	_, err := s.conn.WriteToUDP(buf, &net.UDPAddr{IP: ipFromUint32(destIP), Port: int(destPort)})
	return err
}

// Receive reads one datagram. Nonblocking is simulated with an
// already-elapsed read deadline, since plain UDPConn has no O_NONBLOCK
// equivalent in the net package.
//
// The destIP it reports is the socket's bound local address (LocalAddr), not
// the address the datagram was actually sent to. A socket bound to the
// wildcard address reports 0, and so does every multicast socket, because
// net.ListenMulticastUDP binds to the wildcard address rather than the group.
func (s *UDPSocket) Receive(buf []byte) (n int, srcIP, destIP uint32, err error) {
	if err = s.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, 0, 0, err
	}

	n, raddr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, 0, 0, ErrWouldBlock
		}
		return 0, 0, 0, err
	}

	srcIP = uint32FromIP(raddr.IP)
	if local, ok := s.conn.LocalAddr().(*net.UDPAddr); ok {
		destIP = uint32FromIP(local.IP)
	}
	return n, srcIP, destIP, nil
}

func (s *UDPSocket) Fd() int {
	fd, err := rawFd(s.conn)
	if err != nil {
		return -1
	}
	return fd
}

func (s *UDPSocket) Close() error { return s.conn.Close() }

func ipFromUint32(ip uint32) net.IP {
	return net.IPv4(byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}

func uint32FromIP(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}
