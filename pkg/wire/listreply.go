package wire

import "fmt"

// PeerRecord is one peer entry in a ListReply.
type PeerRecord struct {
	Type   AgentType
	ID     uint16
	Public Socket
	Local  Socket
}

// ListReply is the registry's reply to a check-in: zero or more peer
// records followed by the recipient's own assigned id.
type ListReply struct {
	Peers       []PeerRecord
	RecipientID uint16
}

// EncodeListReply serializes a ListReply, including its leading
// header byte.
func EncodeListReply(reply ListReply) []byte {
	buf := make([]byte, 0, 1+len(reply.Peers)*(1+AgentIDSize+2*SocketSize)+AgentIDSize)
	buf = append(buf, byte(HeaderDomainListReply))
	for _, p := range reply.Peers {
		buf = append(buf, byte(p.Type))
		buf = EncodeAgentID(buf, p.ID)
		buf = EncodeSocket(buf, p.Public)
		buf = EncodeSocket(buf, p.Local)
	}
	buf = EncodeAgentID(buf, reply.RecipientID)
	return buf
}

// DecodeListReply parses a ListReply packet, including its header
// byte.
func DecodeListReply(data []byte) (ListReply, error) {
	if len(data) < 1 {
		return ListReply{}, ErrTruncated
	}
	header := Header(data[0])
	if header != HeaderDomainListReply {
		return ListReply{}, fmt.Errorf("wire: %s is not a list-reply header", header)
	}
	rest := data[1:]

	const entrySize = 1 + AgentIDSize + 2*SocketSize
	var peers []PeerRecord

	for len(rest) > AgentIDSize {
		if len(rest) < entrySize {
			return ListReply{}, ErrTruncated
		}
		typ := AgentType(rest[0])
		rest = rest[1:]

		id, r2, err := DecodeAgentID(rest)
		if err != nil {
			return ListReply{}, err
		}
		rest = r2

		pub, r3, err := DecodeSocket(rest)
		if err != nil {
			return ListReply{}, err
		}
		rest = r3

		loc, r4, err := DecodeSocket(rest)
		if err != nil {
			return ListReply{}, err
		}
		rest = r4

		peers = append(peers, PeerRecord{Type: typ, ID: id, Public: pub, Local: loc})
	}

	recipientID, rest, err := DecodeAgentID(rest)
	if err != nil {
		return ListReply{}, err
	}
	if len(rest) != 0 {
		return ListReply{}, fmt.Errorf("wire: %d trailing bytes after list reply", len(rest))
	}

	return ListReply{Peers: peers, RecipientID: recipientID}, nil
}
