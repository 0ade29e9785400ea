// Package transport implements the registry's UDP data plane: a
// non-blocking bound socket with cached hostname resolution.
package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// MaxDatagramSize bounds the largest packet the transport will read.
const MaxDatagramSize = 1500

// pollTimeout bounds how long Receive blocks before returning a
// timeout error, so a caller's receive loop stays responsive to
// context cancellation between datagrams.
const pollTimeout = 200 * time.Millisecond

// Transport is a bound, non-blocking UDP socket.
type Transport struct {
	conn *net.UDPConn

	mu       sync.Mutex
	hostIPs  map[string]net.IP
}

// Listen binds a UDP socket on the given port across all interfaces.
func Listen(port int) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listen on port %d: %w", port, err)
	}
	return &Transport{conn: conn, hostIPs: make(map[string]net.IP)}, nil
}

// LocalAddr returns the socket's bound local address.
func (t *Transport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// Send writes data to addr.
func (t *Transport) Send(addr *net.UDPAddr, data []byte) error {
	_, err := t.conn.WriteToUDP(data, addr)
	return err
}

// SendByHostname resolves host once per process lifetime (caching the
// result) and sends data to host:port.
func (t *Transport) SendByHostname(host string, port int, data []byte) error {
	ip, err := t.resolve(host)
	if err != nil {
		return err
	}
	return t.Send(&net.UDPAddr{IP: ip, Port: port}, data)
}

func (t *Transport) resolve(host string) (net.IP, error) {
	t.mu.Lock()
	if ip, ok := t.hostIPs[host]; ok {
		t.mu.Unlock()
		return ip, nil
	}
	t.mu.Unlock()

	addrs, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", host, err)
	}

	var ip net.IP
	for _, a := range addrs {
		if v4 := a.To4(); v4 != nil {
			ip = v4
			break
		}
	}
	if ip == nil {
		return nil, fmt.Errorf("transport: %s has no IPv4 address", host)
	}

	t.mu.Lock()
	t.hostIPs[host] = ip
	t.mu.Unlock()

	return ip, nil
}

// Receive blocks until a datagram arrives or the poll deadline
// expires, whichever is first. A timeout is reported via
// net.Error.Timeout() so receive loops can check for cancellation
// between calls without blocking indefinitely.
func (t *Transport) Receive(buf []byte) (n int, from *net.UDPAddr, err error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		return 0, nil, err
	}
	n, from, err = t.conn.ReadFromUDP(buf)
	return n, from, err
}

// LocalIPv4 returns the first non-loopback IPv4 address configured on
// this host, used by the domain server to recognize same-host senders.
func LocalIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate interfaces: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("transport: no non-loopback IPv4 address found")
}
