// Package resolver implements the client-side socket resolver: a
// background task that pings both candidate sockets of a not-yet-
// activated peer and activates whichever one answers first,
// preferring the local address.
package resolver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/fieldmesh/agentreg/pkg/registry"
	"github.com/fieldmesh/agentreg/pkg/wire"
)

// PingInterval is how often the resolver pings unactivated peers.
const PingInterval = 1 * time.Second

// Sender delivers an already-encoded packet to a UDP socket. It is
// satisfied by pkg/transport.Transport.
type Sender interface {
	Send(addr *net.UDPAddr, data []byte) error
}

// Resolver pings unactivated peers and activates them on reply.
type Resolver struct {
	reg    *registry.Registry
	sender Sender
	logger *slog.Logger
}

// New constructs a Resolver bound to reg and sender.
func New(reg *registry.Registry, sender Sender, logger *slog.Logger) *Resolver {
	return &Resolver{reg: reg, sender: sender, logger: logger}
}

// Tick pings both sockets of every still-unactivated peer that has
// both a public and a local candidate.
func (res *Resolver) Tick() {
	ping := wire.EncodePing()
	for _, r := range res.reg.Unactivated() {
		if err := res.sender.Send(r.PublicSocket.UDPAddr(), ping); err != nil && res.logger != nil {
			res.logger.Debug("resolver: ping public failed", "id", r.ID, "err", err)
		}
		if err := res.sender.Send(r.LocalSocket.UDPAddr(), ping); err != nil && res.logger != nil {
			res.logger.Debug("resolver: ping local failed", "id", r.ID, "err", err)
		}
	}
}

// HandlePingReply activates the record whose public or local socket
// matches from, local-first. Subsequent replies for an already
// activated record are ignored because Registry.ActivateBySocket
// skips records that already have an active socket.
func (res *Resolver) HandlePingReply(from wire.Socket) {
	if res.reg.ActivateBySocket(from) && res.logger != nil {
		res.logger.Debug("resolver: activated socket", "from", from.String())
	}
}

// Run ticks every PingInterval until ctx is canceled.
func (res *Resolver) Run(ctx context.Context) error {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res.Tick()
		}
	}
}
