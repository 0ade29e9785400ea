package wire

// EncodePing and EncodePingReply build the one-byte, bodyless probe
// packets used by the client-side socket resolver.
func EncodePing() []byte      { return []byte{byte(HeaderPing)} }
func EncodePingReply() []byte { return []byte{byte(HeaderPingReply)} }
