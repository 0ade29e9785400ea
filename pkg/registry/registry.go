// Package registry implements the domain registry's membership set: a
// bucketed, mutex-guarded container of agent records supporting
// lookup by id or address, add-or-update with solo/loopback
// activation rules, and dead-entry-skipping iteration.
package registry

import (
	"fmt"
	"net"
	"sync"

	"github.com/fieldmesh/agentreg/internal/clock"
	"github.com/fieldmesh/agentreg/internal/metrics"
	"github.com/fieldmesh/agentreg/pkg/agent"
	"github.com/fieldmesh/agentreg/pkg/wire"
)

// MaxNumAgents bounds the registry's population. Reaching it is a
// fatal deployment-sizing error, not a runtime recovery case.
const MaxNumAgents = 10000

// AgentsPerBucket is the size of each lazily-allocated storage bucket.
const AgentsPerBucket = 100

// ErrRegistryFull is the panic value raised when the bucket array is
// exhausted. Callers at the process boundary (cmd/*) should treat a
// panic carrying this value as fatal.
var ErrRegistryFull = fmt.Errorf("registry: bucket array exhausted at %d agents", MaxNumAgents)

// Sender delivers an already-encoded packet to a UDP socket. It is
// satisfied by pkg/transport.Transport, kept as a narrow interface
// here to avoid a package cycle.
type Sender interface {
	Send(addr *net.UDPAddr, data []byte) error
}

// Registry is the process-wide membership set. The zero value is not
// usable; construct with New.
type Registry struct {
	mu sync.Mutex

	buckets     [][]*agent.Record
	numAgents   int
	lastAgentID uint16

	ownerType wire.AgentType
	ownerID   uint16

	clock   *clock.Clock
	metrics *metrics.Metrics
	sender  Sender
}

// New constructs an empty Registry.
func New(clk *clock.Clock, m *metrics.Metrics, sender Sender) *Registry {
	return &Registry{
		ownerID: wire.UnknownAgentID,
		clock:   clk,
		metrics: m,
		sender:  sender,
	}
}

// SetOwner records which agent this process itself is, for the
// harnesses and cmd binaries that run a registry instance as a
// checked-in peer of another registry (see AgentList's ownerType).
func (reg *Registry) SetOwner(typ wire.AgentType, id uint16) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.ownerType = typ
	reg.ownerID = id
}

// OwnerType returns the type this process identifies itself as.
func (reg *Registry) OwnerType() wire.AgentType {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.ownerType
}

// OwnerID returns the id most recently assigned to this process by
// the registry it checks in with, or wire.UnknownAgentID.
func (reg *Registry) OwnerID() uint16 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.ownerID
}

// LastAgentID returns the next id the registry would hand out.
func (reg *Registry) LastAgentID() uint16 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.lastAgentID
}

// AddOrUpdate finds a live record matching (public, local, type), or
// creates one with id = idHint. idHint is advisory on the client
// side: if the hint collides with an existing id for a different
// triple, the collision is preserved rather than rejected, matching
// the original implementation's behavior (see SPEC_FULL.md §9).
func (reg *Registry) AddOrUpdate(public, local *wire.Socket, typ wire.AgentType, idHint uint16) *agent.Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.addOrUpdateLocked(public, local, typ, idHint)
}

// CheckIn is the domain-server's entry point: it allocates the next
// agent id as the hint and advances the counter exactly when that
// hint was actually consumed (i.e. the record was newly inserted).
func (reg *Registry) CheckIn(public, local *wire.Socket, typ wire.AgentType) *agent.Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	hint := reg.lastAgentID
	rec := reg.addOrUpdateLocked(public, local, typ, hint)
	if rec.ID == hint {
		reg.lastAgentID++
	}
	return rec
}

func (reg *Registry) addOrUpdateLocked(public, local *wire.Socket, typ wire.AgentType, idHint uint16) *agent.Record {
	for _, r := range reg.liveRecordsLocked() {
		if r.Matches(public, local, typ) {
			if typ == wire.TypeAudioMixer || typ == wire.TypeVoxelServer {
				r.LastHeardMicro = reg.clock.NowMicro()
			}
			return r
		}
	}

	rec := agent.New(public, local, typ, idHint)
	rec.LastHeardMicro = reg.clock.NowMicro()

	if public != nil && local != nil && public.Equal(*local) {
		rec.ActivatePublic()
	}
	if typ == wire.TypeAvatarMixer || typ == wire.TypeAudioMixer || typ == wire.TypeVoxelServer {
		rec.ActivatePublic()
	}

	reg.appendLocked(rec)
	return rec
}

func (reg *Registry) appendLocked(rec *agent.Record) {
	if reg.numAgents >= MaxNumAgents {
		panic(ErrRegistryFull)
	}

	bucketIndex := reg.numAgents / AgentsPerBucket
	if bucketIndex >= len(reg.buckets) {
		newBuckets := make([][]*agent.Record, bucketIndex+1)
		copy(newBuckets, reg.buckets)
		reg.buckets = newBuckets
	}
	if reg.buckets[bucketIndex] == nil {
		reg.buckets[bucketIndex] = make([]*agent.Record, AgentsPerBucket)
	}
	reg.buckets[bucketIndex][reg.numAgents%AgentsPerBucket] = rec
	reg.numAgents++

	if reg.metrics != nil {
		reg.metrics.LiveAgents.Set(float64(reg.countLiveLocked()))
	}
}

// LookupByAddress returns the first live record whose active socket
// matches sender, or nil.
func (reg *Registry) LookupByAddress(sender wire.Socket) *agent.Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.liveRecordsLocked() {
		if r.ActiveSocket != nil && r.ActiveSocket.Equal(sender) {
			return r
		}
	}
	return nil
}

// LookupByID returns the first live record with the given id, or nil.
func (reg *Registry) LookupByID(id uint16) *agent.Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.liveRecordsLocked() {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// SoloOfType returns the first live record of typ, restricted to solo
// types; nil if typ is not solo or none is present.
func (reg *Registry) SoloOfType(typ wire.AgentType) *agent.Record {
	if !typ.IsSolo() {
		return nil
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, r := range reg.liveRecordsLocked() {
		if r.Type == typ {
			return r
		}
	}
	return nil
}

// Broadcast sends buf to every live record whose active socket is set
// and whose type is in types.
func (reg *Registry) Broadcast(buf []byte, types []wire.AgentType) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var firstErr error
	for _, r := range reg.liveRecordsLocked() {
		if r.ActiveSocket == nil || !containsType(types, r.Type) {
			continue
		}
		if err := reg.sender.Send(r.ActiveSocket.UDPAddr(), buf); err != nil && firstErr == nil {
			firstErr = err
		} else if err == nil && reg.metrics != nil {
			reg.metrics.BroadcastBytes.Add(float64(len(buf)))
		}
	}
	return firstErr
}

// FilterForReply builds the peer list for a check-in reply: it
// excludes the sender itself, keeps only records whose type is in
// interest, suppresses Avatar-to-Avatar inclusions, and for solo
// types keeps only the one with the largest wake microstamp (earlier
// record wins ties).
func (reg *Registry) FilterForReply(sender *agent.Record, senderType wire.AgentType, interest []wire.AgentType) []wire.PeerRecord {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if len(interest) == 0 {
		return nil
	}

	var multi []wire.PeerRecord
	soloWinners := make(map[wire.AgentType]*agent.Record)

	for _, r := range reg.liveRecordsLocked() {
		if r == sender {
			continue
		}
		if !containsType(interest, r.Type) {
			continue
		}

		if r.Type.IsSolo() {
			winner, ok := soloWinners[r.Type]
			if !ok || winner.WakeMicro < r.WakeMicro {
				soloWinners[r.Type] = r
			}
			continue
		}

		if senderType == wire.TypeInteractive && r.Type == wire.TypeInteractive {
			// Avatar discovery is delegated to the avatar mixer.
			continue
		}

		multi = append(multi, toPeerRecord(r))
	}

	for _, r := range soloWinners {
		multi = append(multi, toPeerRecord(r))
	}

	return multi
}

func toPeerRecord(r *agent.Record) wire.PeerRecord {
	pr := wire.PeerRecord{Type: r.Type, ID: r.ID}
	if r.PublicSocket != nil {
		pr.Public = *r.PublicSocket
	}
	if r.LocalSocket != nil {
		pr.Local = *r.LocalSocket
	}
	return pr
}

func containsType(types []wire.AgentType, t wire.AgentType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// Unactivated returns every live record that has neither socket
// activated yet but carries both a public and a local socket — the
// set the client-side socket resolver pings.
func (reg *Registry) Unactivated() []*agent.Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	var out []*agent.Record
	for _, r := range reg.liveRecordsLocked() {
		if r.ActiveSocket == nil && r.PublicSocket != nil && r.LocalSocket != nil {
			out = append(out, r)
		}
	}
	return out
}

// ActivateBySocket activates the first still-unactivated live record
// whose public or local socket matches from, preferring the local
// socket when both sides of that record happen to match (same-LAN
// preference). It reports whether a record was activated.
func (reg *Registry) ActivateBySocket(from wire.Socket) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, r := range reg.liveRecordsLocked() {
		if r.ActiveSocket != nil {
			continue
		}
		switch {
		case r.LocalSocket != nil && r.LocalSocket.Equal(from):
			r.ActivateLocal()
			return true
		case r.PublicSocket != nil && r.PublicSocket.Equal(from):
			r.ActivatePublic()
			return true
		}
	}
	return false
}

// Touch updates a record's liveness timestamp, and its wake
// microstamp when advanceWake is set, under the registry's lock. The
// domain server loop calls this after every check-in so the field
// writes stay serialized against concurrent reaper/resolver access.
func (reg *Registry) Touch(rec *agent.Record, now int64, advanceWake bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec.LastHeardMicro = now
	if advanceWake {
		rec.WakeMicro = now
	}
}

// RecordData updates a record's liveness timestamp and, once it is
// activated, its received-byte counter, under the registry's lock.
func (reg *Registry) RecordData(rec *agent.Record, now int64, n int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec.LastHeardMicro = now
	if rec.IsActivated() {
		rec.RecordBytesReceived(n)
	}
}

// Count returns the number of live (non-reaped) records.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.countLiveLocked()
}

func (reg *Registry) countLiveLocked() int {
	n := 0
	for _, r := range reg.liveRecordsLocked() {
		_ = r
		n++
	}
	return n
}

// liveRecordsLocked returns every alive record in insertion order,
// transparently skipping reaped entries. Callers must hold reg.mu.
func (reg *Registry) liveRecordsLocked() []*agent.Record {
	live := make([]*agent.Record, 0, reg.numAgents)
	for i := 0; i < reg.numAgents; i++ {
		r := reg.buckets[i/AgentsPerBucket][i%AgentsPerBucket]
		if r.Alive {
			live = append(live, r)
		}
	}
	return live
}
