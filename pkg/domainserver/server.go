// Package domainserver implements the registry's receive loop: parse
// check-ins, apply the same-host source rewrite, update membership,
// and reply with a filtered peer list.
package domainserver

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/wire"
)

// Transport is the subset of pkg/transport.Transport the server needs.
type Transport interface {
	Receive(buf []byte) (n int, from *net.UDPAddr, err error)
	Send(addr *net.UDPAddr, data []byte) error
}

// Config controls the same-host rewrite.
type Config struct {
	// LocalMode disables the source-address rewrite entirely, per
	// spec.md §4.7's --local flag.
	LocalMode bool
	// LocalIPv4 is the registry host's own address; a check-in whose
	// source IP matches it is treated as same-host.
	LocalIPv4 net.IP
	// PublicIPv4 replaces the address of a same-host sender's public
	// socket so remote peers can reach it.
	PublicIPv4 net.IP
}

// Server runs the check-in receive loop.
type Server struct {
	transport Transport
	reg       *registry.Registry
	clock     *clock.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
}

// New constructs a Server.
func New(transport Transport, reg *registry.Registry, clk *clock.Clock, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Server {
	return &Server{transport: transport, reg: reg, clock: clk, metrics: m, logger: logger, cfg: cfg}
}

// Run receives and handles check-ins until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, from, err := s.transport.Receive(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		if err := s.handle(buf[:n], from); err != nil {
			if s.metrics != nil {
				s.metrics.MalformedDropped.Inc()
			}
			if s.logger != nil {
				s.logger.Debug("domainserver: dropped packet", "from", from, "err", err)
			}
		}
	}
}

func (s *Server) handle(data []byte, from *net.UDPAddr) error {
	if len(data) == 0 {
		return errors.New("domainserver: empty packet")
	}
	header := wire.Header(data[0])
	if !header.IsCheckIn() {
		return nil
	}

	msg, err := wire.DecodeCheckIn(data)
	if err != nil {
		return err
	}

	sourceSocket, err := wire.SocketFromUDP(from)
	if err != nil {
		return err
	}

	publicSocket, replyDest := s.rewrite(sourceSocket, msg.LocalSocket)

	rec := s.reg.CheckIn(&publicSocket, &msg.LocalSocket, msg.Type)
	if s.metrics != nil {
		s.metrics.CheckInsTotal.Inc()
	}

	now := s.clock.NowMicro()
	advanceWake := header == wire.HeaderDomainReportForDuty && msg.Type.IsSolo()
	s.reg.Touch(rec, now, advanceWake)

	peers := s.reg.FilterForReply(rec, msg.Type, msg.Interest)
	reply := wire.EncodeListReply(wire.ListReply{Peers: peers, RecipientID: rec.ID})

	if err := s.transport.Send(replyDest.UDPAddr(), reply); err != nil && s.logger != nil {
		s.logger.Warn("domainserver: reply send failed", "to", replyDest.String(), "err", err)
	}
	return nil
}

// rewrite implements spec.md §4.6 step 2: a same-host sender's public
// socket is advertised under the configured public IPv4 and the reply
// is sent to its local socket instead. --local mode, or a sender whose
// address doesn't match the registry's own host, passes through
// unchanged: the public socket is the observed source and the reply
// goes straight back there.
func (s *Server) rewrite(source, local wire.Socket) (publicSocket, replyDest wire.Socket) {
	if s.cfg.LocalMode || s.cfg.LocalIPv4 == nil || !net.IP(source.IP[:]).Equal(s.cfg.LocalIPv4) {
		return source, source
	}
	rewritten := source
	copy(rewritten.IP[:], s.cfg.PublicIPv4.To4())
	return rewritten, local
}
