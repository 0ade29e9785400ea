package domainserver

import (
	"net"
	"testing"
	"time"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/wire"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sentTo   *net.UDPAddr
	sentData []byte
}

func (f *fakeTransport) Receive(buf []byte) (int, *net.UDPAddr, error) { return 0, nil, nil }

func (f *fakeTransport) Send(addr *net.UDPAddr, data []byte) error {
	f.sentTo = addr
	f.sentData = data
	return nil
}

type registrySender struct{}

func (registrySender) Send(addr *net.UDPAddr, data []byte) error { return nil }

func newServer(cfg Config) (*Server, *registry.Registry, *fakeTransport) {
	clk := clock.New()
	clk.Set(time.Unix(1000, 0))
	reg := registry.New(clk, metrics.Noop(), registrySender{})
	tr := &fakeTransport{}
	return New(tr, reg, clk, metrics.Noop(), nil, cfg), reg, tr
}

func checkInPacket(header wire.Header, typ wire.AgentType, local wire.Socket, interest []wire.AgentType) []byte {
	return wire.EncodeCheckIn(wire.CheckIn{Header: header, Type: typ, LocalSocket: local, Interest: interest})
}

func TestHandleInsertsRecordAndRepliesWithRecipientID(t *testing.T) {
	s, reg, tr := newServer(Config{LocalMode: true})

	from := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 4000}
	local := wire.Socket{IP: [4]byte{10, 0, 0, 5}, Port: 5000}
	pkt := checkInPacket(wire.HeaderDomainListRequest, wire.TypeInteractive, local, nil)

	require.NoError(t, s.handle(pkt, from))
	require.Equal(t, 1, reg.Count())

	reply, err := wire.DecodeListReply(tr.sentData)
	require.NoError(t, err)
	rec := reg.LookupByID(0)
	require.NotNil(t, rec)
	require.Equal(t, rec.ID, reply.RecipientID)
}

func TestHandleReportForDutyAdvancesWakeMicroForSoloType(t *testing.T) {
	s, reg, _ := newServer(Config{LocalMode: true})

	from := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 4000}
	local := wire.Socket{IP: [4]byte{10, 0, 0, 5}, Port: 5000}
	pkt := checkInPacket(wire.HeaderDomainReportForDuty, wire.TypeAudioMixer, local, nil)

	require.NoError(t, s.handle(pkt, from))

	rec := reg.SoloOfType(wire.TypeAudioMixer)
	require.NotNil(t, rec)
	require.NotZero(t, rec.WakeMicro)
}

func TestHandleListRequestDoesNotAdvanceWakeMicro(t *testing.T) {
	s, reg, _ := newServer(Config{LocalMode: true})

	from := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 4000}
	local := wire.Socket{IP: [4]byte{10, 0, 0, 5}, Port: 5000}
	pkt := checkInPacket(wire.HeaderDomainListRequest, wire.TypeAudioMixer, local, nil)

	require.NoError(t, s.handle(pkt, from))

	rec := reg.SoloOfType(wire.TypeAudioMixer)
	require.Zero(t, rec.WakeMicro)
}

func TestHandleSameHostRewritesPublicAddressAndRepliesLocally(t *testing.T) {
	cfg := Config{
		LocalIPv4:  net.IPv4(10, 0, 0, 1),
		PublicIPv4: net.IPv4(198, 51, 100, 9),
	}
	s, reg, tr := newServer(cfg)

	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}
	local := wire.Socket{IP: [4]byte{10, 0, 0, 1}, Port: 5000}
	pkt := checkInPacket(wire.HeaderDomainListRequest, wire.TypeInteractive, local, nil)

	require.NoError(t, s.handle(pkt, from))

	rec := reg.LookupByID(reg.LastAgentID() - 1)
	require.NotNil(t, rec)
	require.Equal(t, [4]byte{198, 51, 100, 9}, rec.PublicSocket.IP)
	require.Equal(t, local.Port, uint16(tr.sentTo.Port))
	require.Equal(t, local.IP[:], []byte(tr.sentTo.IP.To4()))
}

func TestHandleLocalModeSkipsRewrite(t *testing.T) {
	cfg := Config{
		LocalMode:  true,
		LocalIPv4:  net.IPv4(10, 0, 0, 1),
		PublicIPv4: net.IPv4(198, 51, 100, 9),
	}
	s, reg, tr := newServer(cfg)

	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}
	local := wire.Socket{IP: [4]byte{10, 0, 0, 1}, Port: 5000}
	pkt := checkInPacket(wire.HeaderDomainListRequest, wire.TypeInteractive, local, nil)

	require.NoError(t, s.handle(pkt, from))

	rec := reg.LookupByID(reg.LastAgentID() - 1)
	require.Equal(t, [4]byte{10, 0, 0, 1}, rec.PublicSocket.IP)
	require.Equal(t, uint16(4000), uint16(tr.sentTo.Port))
}

func TestHandleNonCheckInHeaderIsIgnored(t *testing.T) {
	s, reg, _ := newServer(Config{LocalMode: true})
	from := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 4000}

	require.NoError(t, s.handle(wire.EncodePing(), from))
	require.Equal(t, 0, reg.Count())
}

func TestHandleMalformedPacketReturnsError(t *testing.T) {
	s, _, _ := newServer(Config{LocalMode: true})
	from := &net.UDPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 4000}

	err := s.handle([]byte{byte(wire.HeaderDomainListRequest)}, from)
	require.Error(t, err)
}
