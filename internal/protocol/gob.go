package protocol

import "encoding/gob"

// Wire message payloads travel through internal/fabric as opaque bytes
// (Envelope.Payload []byte); internal/orchestrator's driver gob-encodes an
// sm.OutboundMessage.Payload before handing it to the fabric and decodes it
// back on arrival. gob needs every concrete payload type registered once,
// which only this package can do since the types themselves are
// unexported — the caller outside this package never needs to name them,
// only to round-trip whatever value a Machine.Step hands it.
func init() {
	gob.Register(revealPayload{})
	gob.Register(multPayload{})
	gob.Register(ranPayload{})
	gob.Register(randomBitwisePayload{})
	gob.Register(invRanPayload{})
	gob.Register(ecdsaPointPayload{})
	gob.Register(auxInfoCommitPayload{})
	gob.Register(auxInfoOpenPayload{})
}
