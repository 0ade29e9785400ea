// Package agent defines the registry's per-peer record: identity,
// dual sockets, activation state, liveness tracking, and an opaque
// linked payload.
package agent

import "github.com/fieldmesh/agentreg/pkg/wire"

// Record is one peer's entry in the registry. Every mutable field is
// protected by the owning registry's mutex, not by a lock of its own
// — see the concurrency model in SPEC_FULL.md §5.
type Record struct {
	// Immutable after insertion.
	Type wire.AgentType
	ID   uint16

	PublicSocket *wire.Socket
	LocalSocket  *wire.Socket
	ActiveSocket *wire.Socket

	LastHeardMicro int64
	WakeMicro      int64
	BytesReceived  uint64
	Alive          bool

	LinkedData Payload
}

// New creates a Record in its initial (unactivated, alive) state.
func New(public, local *wire.Socket, typ wire.AgentType, id uint16) *Record {
	return &Record{
		Type:         typ,
		ID:           id,
		PublicSocket: public,
		LocalSocket:  local,
		Alive:        true,
	}
}

// Matches implements the registry's addOrUpdate identity check: types
// must be equal, and each socket pair matches if either side is nil
// (wildcard) or both sides carry the same address.
func (r *Record) Matches(public, local *wire.Socket, typ wire.AgentType) bool {
	if r.Type != typ {
		return false
	}
	if !socketMatches(r.PublicSocket, public) {
		return false
	}
	return socketMatches(r.LocalSocket, local)
}

func socketMatches(a, b *wire.Socket) bool {
	if a == nil || b == nil {
		return true
	}
	return a.Equal(*b)
}

// ActivatePublic sets the active socket to the public socket.
func (r *Record) ActivatePublic() {
	r.ActiveSocket = r.PublicSocket
}

// ActivateLocal sets the active socket to the local socket.
func (r *Record) ActivateLocal() {
	r.ActiveSocket = r.LocalSocket
}

// IsActivated reports whether an active socket has been chosen.
func (r *Record) IsActivated() bool {
	return r.ActiveSocket != nil
}

// RecordBytesReceived adds n to the record's received-byte counter.
func (r *Record) RecordBytesReceived(n int) {
	r.BytesReceived += uint64(n)
}

// EnsurePayload materializes LinkedData via f on first use and
// returns it.
func (r *Record) EnsurePayload(f Factory) Payload {
	if r.LinkedData == nil && f != nil {
		r.LinkedData = f.NewPayload(r)
	}
	return r.LinkedData
}
