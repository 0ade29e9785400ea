package wire

import "fmt"

// CheckIn is the packet an agent sends to the registry to announce
// itself and request peers of interest.
type CheckIn struct {
	Header      Header
	Type        AgentType
	LocalSocket Socket
	Interest    []AgentType
}

// EncodeCheckIn serializes a CheckIn, including its leading header
// byte.
func EncodeCheckIn(msg CheckIn) []byte {
	buf := make([]byte, 0, 1+1+SocketSize+1+len(msg.Interest))
	buf = append(buf, byte(msg.Header))
	buf = append(buf, byte(msg.Type))
	buf = EncodeSocket(buf, msg.LocalSocket)
	buf = append(buf, byte(len(msg.Interest)))
	for _, t := range msg.Interest {
		buf = append(buf, byte(t))
	}
	return buf
}

// DecodeCheckIn parses a CheckIn packet, including its header byte.
// It returns ErrTruncated on any premature end of buffer and a
// descriptive error if the header byte is not a check-in header.
func DecodeCheckIn(data []byte) (CheckIn, error) {
	if len(data) < 1 {
		return CheckIn{}, ErrTruncated
	}
	header := Header(data[0])
	if !header.IsCheckIn() {
		return CheckIn{}, fmt.Errorf("wire: %s is not a check-in header", header)
	}
	rest := data[1:]

	if len(rest) < 1 {
		return CheckIn{}, ErrTruncated
	}
	agentType := AgentType(rest[0])
	rest = rest[1:]

	localSocket, rest, err := DecodeSocket(rest)
	if err != nil {
		return CheckIn{}, err
	}

	if len(rest) < 1 {
		return CheckIn{}, ErrTruncated
	}
	numInterest := int(rest[0])
	rest = rest[1:]
	if len(rest) < numInterest {
		return CheckIn{}, ErrTruncated
	}

	interest := make([]AgentType, numInterest)
	for i := 0; i < numInterest; i++ {
		interest[i] = AgentType(rest[i])
	}

	return CheckIn{
		Header:      header,
		Type:        agentType,
		LocalSocket: localSocket,
		Interest:    interest,
	}, nil
}
