package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// SocketSize is the encoded length of a Socket: 4 address bytes
// followed by 2 port bytes.
const SocketSize = 6

// ErrTruncated is returned by decoders when the buffer ends before a
// complete field could be read.
var ErrTruncated = errors.New("wire: truncated packet")

// Socket is an IPv4 address plus port, as carried on the wire. It is
// serialized explicitly (4 address bytes + 2 port bytes, both network
// byte order) rather than by byte-copying a native socket struct.
type Socket struct {
	IP   [4]byte
	Port uint16
}

// SocketFromUDP builds a Socket from a standard library UDP address.
// It returns an error if addr does not carry a 4-byte IPv4 address.
func SocketFromUDP(addr *net.UDPAddr) (Socket, error) {
	var s Socket
	if addr == nil {
		return s, fmt.Errorf("wire: nil address")
	}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return s, fmt.Errorf("wire: address %s is not IPv4", addr.IP)
	}
	copy(s.IP[:], ip4)
	s.Port = uint16(addr.Port)
	return s, nil
}

// UDPAddr converts a Socket back to a *net.UDPAddr.
func (s Socket) UDPAddr() *net.UDPAddr {
	ip := make(net.IP, 4)
	copy(ip, s.IP[:])
	return &net.UDPAddr{IP: ip, Port: int(s.Port)}
}

func (s Socket) String() string {
	return s.UDPAddr().String()
}

// Equal reports whether two sockets carry the same address and port.
func (s Socket) Equal(other Socket) bool {
	return s.IP == other.IP && s.Port == other.Port
}

// EncodeSocket appends the wire form of s to buf and returns the
// extended slice.
func EncodeSocket(buf []byte, s Socket) []byte {
	buf = append(buf, s.IP[:]...)
	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], s.Port)
	return append(buf, portBuf[:]...)
}

// DecodeSocket reads a Socket from the front of buf, returning the
// decoded value and the remaining bytes.
func DecodeSocket(buf []byte) (Socket, []byte, error) {
	if len(buf) < SocketSize {
		return Socket{}, nil, ErrTruncated
	}
	var s Socket
	copy(s.IP[:], buf[:4])
	s.Port = binary.BigEndian.Uint16(buf[4:6])
	return s, buf[SocketSize:], nil
}
