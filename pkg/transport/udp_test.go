package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	server, err := Listen(0)
	require.NoError(t, err)
	defer server.Close()

	client, err := Listen(0)
	require.NoError(t, err)
	defer client.Close()

	loopback := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: server.LocalAddr().Port}
	require.NoError(t, client.Send(loopback, []byte("hello")))

	buf := make([]byte, MaxDatagramSize)
	var n int
	for i := 0; i < 50; i++ {
		n, _, err = server.Receive(buf)
		if err == nil {
			break
		}
	}
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReceiveTimesOutWithoutData(t *testing.T) {
	tr, err := Listen(0)
	require.NoError(t, err)
	defer tr.Close()

	buf := make([]byte, MaxDatagramSize)
	_, _, err = tr.Receive(buf)
	require.Error(t, err)

	netErr, ok := err.(net.Error)
	require.True(t, ok)
	require.True(t, netErr.Timeout())
}

func TestSendByHostnameCachesResolution(t *testing.T) {
	server, err := Listen(0)
	require.NoError(t, err)
	defer server.Close()

	client, err := Listen(0)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SendByHostname("localhost", server.LocalAddr().Port, []byte("hi")))
	require.Contains(t, client.hostIPs, "localhost")

	cached := client.hostIPs["localhost"]
	require.NoError(t, client.SendByHostname("localhost", server.LocalAddr().Port, []byte("hi-again")))
	require.Equal(t, cached, client.hostIPs["localhost"])
}
