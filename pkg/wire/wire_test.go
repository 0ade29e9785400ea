package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSocketRoundTrip(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 42), Port: 40103}
	s, err := SocketFromUDP(addr)
	require.NoError(t, err)

	buf := EncodeSocket(nil, s)
	require.Len(t, buf, SocketSize)

	decoded, rest, err := DecodeSocket(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.True(t, s.Equal(decoded))
	require.Equal(t, addr.String(), decoded.String())
}

func TestSocketFromUDPRejectsIPv6(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("::1"), Port: 1}
	_, err := SocketFromUDP(addr)
	require.Error(t, err)
}

func TestDecodeSocketTruncated(t *testing.T) {
	_, _, err := DecodeSocket([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestAgentIDRoundTrip(t *testing.T) {
	buf := EncodeAgentID(nil, 12345)
	id, rest, err := DecodeAgentID(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.EqualValues(t, 12345, id)
}

func TestAgentIDIsLittleEndian(t *testing.T) {
	buf := EncodeAgentID(nil, 0x0102)
	require.Equal(t, []byte{0x02, 0x01}, buf)
}

func TestCheckInRoundTrip(t *testing.T) {
	sock, err := SocketFromUDP(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 40103})
	require.NoError(t, err)

	msg := CheckIn{
		Header:      HeaderDomainListRequest,
		Type:        TypeInteractive,
		LocalSocket: sock,
		Interest:    []AgentType{TypeAudioMixer, TypeAvatarMixer},
	}

	decoded, err := DecodeCheckIn(EncodeCheckIn(msg))
	require.NoError(t, err)
	require.Equal(t, msg, decoded)
}

func TestCheckInEmptyInterest(t *testing.T) {
	msg := CheckIn{Header: HeaderDomainReportForDuty, Type: TypeAudioMixer}
	decoded, err := DecodeCheckIn(EncodeCheckIn(msg))
	require.NoError(t, err)
	require.Empty(t, decoded.Interest)
}

func TestDecodeCheckInRejectsWrongHeader(t *testing.T) {
	msg := CheckIn{Header: HeaderDomainListRequest, Type: TypeInteractive}
	buf := EncodeCheckIn(msg)
	buf[0] = byte(HeaderDomainListReply)
	_, err := DecodeCheckIn(buf)
	require.Error(t, err)
}

func TestDecodeCheckInTruncatedInterest(t *testing.T) {
	msg := CheckIn{Header: HeaderDomainReportForDuty, Type: TypeAudioMixer, Interest: []AgentType{TypeVoxelServer}}
	buf := EncodeCheckIn(msg)
	_, err := DecodeCheckIn(buf[:len(buf)-1])
	require.ErrorIs(t, err, ErrTruncated)
}

func TestListReplyRoundTrip(t *testing.T) {
	pub, _ := SocketFromUDP(&net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 100})
	loc, _ := SocketFromUDP(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 200})

	reply := ListReply{
		Peers: []PeerRecord{
			{Type: TypeAudioMixer, ID: 7, Public: pub, Local: loc},
		},
		RecipientID: 3,
	}

	decoded, err := DecodeListReply(EncodeListReply(reply))
	require.NoError(t, err)
	require.Equal(t, reply, decoded)
}

func TestListReplyEmptyBody(t *testing.T) {
	reply := ListReply{RecipientID: 1}
	decoded, err := DecodeListReply(EncodeListReply(reply))
	require.NoError(t, err)
	require.Empty(t, decoded.Peers)
	require.EqualValues(t, 1, decoded.RecipientID)
}

func TestDecodeListReplyTrailingBytes(t *testing.T) {
	reply := ListReply{RecipientID: 1}
	buf := append(EncodeListReply(reply), 0xFF)
	_, err := DecodeListReply(buf)
	require.Error(t, err)
}

func TestHeaderIsCheckIn(t *testing.T) {
	require.True(t, HeaderDomainReportForDuty.IsCheckIn())
	require.True(t, HeaderDomainListRequest.IsCheckIn())
	require.False(t, HeaderDomainListReply.IsCheckIn())
	require.False(t, HeaderPing.IsCheckIn())
}

func TestAgentTypeIsSolo(t *testing.T) {
	require.True(t, TypeAudioMixer.IsSolo())
	require.True(t, TypeAvatarMixer.IsSolo())
	require.True(t, TypeVoxelServer.IsSolo())
	require.False(t, TypeInteractive.IsSolo())
	require.False(t, TypeDomain.IsSolo())
}
