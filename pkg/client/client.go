// Package client implements an agent process's side of the protocol:
// a periodic check-in to the registry, ingestion of its reply, and
// dispatch of ping and avatar-data packets exchanged directly with
// peers.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/agent"
	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/resolver"
	"github.com/fieldmesh/agentreg/pkg/wire"
)

// CheckInInterval is how often the client announces itself to the
// registry.
const CheckInInterval = 1 * time.Second

// Transport is the subset of pkg/transport.Transport the client needs.
type Transport interface {
	Receive(buf []byte) (n int, from *net.UDPAddr, err error)
	Send(addr *net.UDPAddr, data []byte) error
	SendByHostname(host string, port int, data []byte) error
}

// Config describes one agent process's identity.
type Config struct {
	Type        wire.AgentType
	LocalSocket wire.Socket
	Interest    []wire.AgentType
	DomainHost  string
	DomainPort  int
}

// Client runs an agent's check-in loop and packet dispatch.
type Client struct {
	transport Transport
	reg       *registry.Registry
	resolver  *resolver.Resolver
	clock     *clock.Clock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	factory   agent.Factory
	cfg       Config

	ownID uint16
}

// New constructs a Client. factory may be nil if this agent never
// receives avatar data.
func New(transport Transport, reg *registry.Registry, res *resolver.Resolver, clk *clock.Clock, m *metrics.Metrics, logger *slog.Logger, factory agent.Factory, cfg Config) *Client {
	return &Client{
		transport: transport,
		reg:       reg,
		resolver:  res,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		factory:   factory,
		cfg:       cfg,
		ownID:     wire.UnknownAgentID,
	}
}

// OwnID returns the id most recently assigned by the registry, or
// wire.UnknownAgentID before the first reply arrives.
func (c *Client) OwnID() uint16 {
	return c.ownID
}

func (c *Client) checkInHeader() wire.Header {
	if c.cfg.Type.IsSolo() {
		return wire.HeaderDomainReportForDuty
	}
	return wire.HeaderDomainListRequest
}

// CheckIn sends one check-in packet to the configured domain server.
func (c *Client) CheckIn() error {
	pkt := wire.EncodeCheckIn(wire.CheckIn{
		Header:      c.checkInHeader(),
		Type:        c.cfg.Type,
		LocalSocket: c.cfg.LocalSocket,
		Interest:    c.cfg.Interest,
	})
	return c.transport.SendByHostname(c.cfg.DomainHost, c.cfg.DomainPort, pkt)
}

// RunCheckIns emits a check-in every CheckInInterval until ctx is
// canceled.
func (c *Client) RunCheckIns(ctx context.Context) error {
	ticker := time.NewTicker(CheckInInterval)
	defer ticker.Stop()

	if err := c.CheckIn(); err != nil && c.logger != nil {
		c.logger.Warn("client: initial check-in failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.CheckIn(); err != nil && c.logger != nil {
				c.logger.Warn("client: check-in failed", "err", err)
			}
		}
	}
}

// RunReceive handles inbound packets until ctx is canceled.
func (c *Client) RunReceive(ctx context.Context) error {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, from, err := c.transport.Receive(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		if err := c.dispatch(buf[:n], from); err != nil {
			if c.metrics != nil {
				c.metrics.MalformedDropped.Inc()
			}
			if c.logger != nil {
				c.logger.Debug("client: dropped packet", "from", from, "err", err)
			}
		}
	}
}

func (c *Client) dispatch(data []byte, from *net.UDPAddr) error {
	if len(data) == 0 {
		return errors.New("client: empty packet")
	}

	switch wire.Header(data[0]) {
	case wire.HeaderDomainListReply:
		return c.processDomainServerList(data)
	case wire.HeaderPing:
		if err := c.transport.Send(from, wire.EncodePingReply()); err != nil && c.logger != nil {
			c.logger.Warn("client: ping reply send failed", "to", from, "err", err)
		}
		return nil
	case wire.HeaderPingReply:
		sock, err := wire.SocketFromUDP(from)
		if err != nil {
			return err
		}
		if c.resolver != nil {
			c.resolver.HandlePingReply(sock)
		}
		return nil
	case wire.HeaderHeadData:
		return c.handleHeadData(data[1:])
	case wire.HeaderBulkAvatarData:
		return c.handleBulkAvatarData(data[1:])
	default:
		return nil
	}
}

// processDomainServerList implements spec.md §4.7: feed every peer
// record into the registry, then read the trailing 2 bytes as this
// agent's own assigned id.
func (c *Client) processDomainServerList(data []byte) error {
	reply, err := wire.DecodeListReply(data)
	if err != nil {
		return err
	}
	for _, p := range reply.Peers {
		c.reg.AddOrUpdate(&p.Public, &p.Local, p.Type, p.ID)
	}
	c.ownID = reply.RecipientID
	c.reg.SetOwner(c.cfg.Type, reply.RecipientID)
	return nil
}

func (c *Client) handleHeadData(body []byte) error {
	if len(body) < wire.AgentIDSize {
		return wire.ErrTruncated
	}
	id, rest, err := wire.DecodeAgentID(body)
	if err != nil {
		return err
	}

	rec := c.reg.LookupByID(id)
	if rec == nil {
		return nil
	}
	c.touchAndParse(rec, rest)
	return nil
}

// handleBulkAvatarData implements the original implementation's bulk
// unpacking loop (see AgentList::processBulkAgentData): entries are
// [agentID][payload], with the payload's own parser reporting how many
// bytes it consumed so the loop can advance to the next entry.
// Unknown ids are treated as newly-seen Interactive ("avatar client")
// agents with no known socket yet.
func (c *Client) handleBulkAvatarData(body []byte) error {
	for len(body) >= wire.AgentIDSize {
		id, rest, err := wire.DecodeAgentID(body)
		if err != nil {
			return err
		}

		rec := c.reg.LookupByID(id)
		if rec == nil {
			rec = c.reg.AddOrUpdate(nil, nil, wire.TypeInteractive, id)
		}

		consumed := c.touchAndParse(rec, rest)
		if consumed <= 0 {
			return nil
		}
		body = rest[consumed:]
	}
	return nil
}

func (c *Client) touchAndParse(rec *agent.Record, payload []byte) int {
	c.reg.RecordData(rec, c.clock.NowMicro(), len(payload))

	p := rec.EnsurePayload(c.factory)
	if p == nil {
		return len(payload)
	}
	n, err := p.ParseData(payload)
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("client: payload parse failed", "id", rec.ID, "err", err)
		}
		return len(payload)
	}
	return n
}
