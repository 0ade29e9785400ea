package agent

// Payload is the opaque per-agent data an application layer attaches
// to a Record. The registry never inspects it; it only materializes
// one via a user-supplied Factory on the agent's first data packet.
type Payload interface {
	// ParseData feeds a HeadData/BulkAvatarData body to the payload
	// and returns the number of bytes it consumed.
	ParseData(data []byte) (int, error)
}

// Factory builds a Payload for a newly-data-bearing Record. Modeling
// it as an interface (rather than a bare function pointer) allows
// per-agent-type construction.
type Factory interface {
	NewPayload(r *Record) Payload
}

// FactoryFunc adapts a function to a Factory.
type FactoryFunc func(r *Record) Payload

func (f FactoryFunc) NewPayload(r *Record) Payload { return f(r) }
