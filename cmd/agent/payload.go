package main

import (
	"bytes"

	"github.com/fieldmesh/agentreg/pkg/agent"
	"github.com/fxamacker/cbor/v2"
)

// headPose is the demo avatar payload carried in HeadData/BulkAvatarData
// bodies: a CBOR-encoded position and orientation. The registry never
// looks inside it; this is purely what the reference agent binary
// chooses to exchange once a peer is known.
type headPose struct {
	Position    [3]float32 `cbor:"0,keyasint"`
	Orientation [4]float32 `cbor:"1,keyasint"`
}

// headDataPayload implements agent.Payload by decoding one CBOR-framed
// headPose per call and reporting how many bytes the decoder consumed,
// so callers handling BulkAvatarData can advance to the next entry.
type headDataPayload struct {
	record *agent.Record
	latest headPose
}

func newHeadDataPayload(r *agent.Record) agent.Payload {
	return &headDataPayload{record: r}
}

func (p *headDataPayload) ParseData(data []byte) (int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	var pose headPose
	if err := dec.Decode(&pose); err != nil {
		return 0, err
	}
	p.latest = pose
	return dec.NumBytesRead(), nil
}
