package wire

import "encoding/binary"

// AgentIDSize is the encoded length of an agent id.
const AgentIDSize = 2

// EncodeAgentID appends the little-endian wire form of id to buf.
//
// The spec leaves the registry's choice of byte order open as long as
// every participant agrees; this implementation fixes little-endian
// explicitly.
func EncodeAgentID(buf []byte, id uint16) []byte {
	var idBuf [2]byte
	binary.LittleEndian.PutUint16(idBuf[:], id)
	return append(buf, idBuf[:]...)
}

// DecodeAgentID reads an agent id from the front of buf, returning the
// decoded value and the remaining bytes.
func DecodeAgentID(buf []byte) (uint16, []byte, error) {
	if len(buf) < AgentIDSize {
		return 0, nil, ErrTruncated
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[AgentIDSize:], nil
}
