package protocol

import (
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// revealPayload carries one party's share of the secret being revealed.
type revealPayload struct {
	Share share.Share
}

// Reveal implements REVEAL: every participant broadcasts its share of a
// secret and locally reconstructs the secret once threshold+1 shares have
// arrived. Grounded on the teacher's core/vm/open/open.go Opener, which
// does exactly this — broadcast-then-reconstruct — gated on a received
// count rather than a fixed round count.
type Reveal struct {
	parties Parties
	mine    share.Share
	state   sm.StateTag

	received share.Shares
	result   field.Elem
}

// NewReveal constructs a Reveal machine for the caller's own share of the
// secret to be revealed.
func NewReveal(parties Parties, mine share.Share) *Reveal {
	return &Reveal{parties: parties, mine: mine, state: "broadcasting"}
}

// Step implements sm.Machine. A nil inbound message pumps the initial
// broadcast; every other invocation folds in one peer's share.
func (r *Reveal) Step(inbound *sm.InboundMessage) sm.StepResult {
	if inbound == nil {
		r.state = "waiting"
		r.received = append(r.received, r.mine)
		return sm.EmitMessages(broadcast(r.parties, func(uint64) interface{} {
			return revealPayload{Share: r.mine}
		}))
	}

	payload, ok := inbound.Payload.(revealPayload)
	if !ok {
		return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("Reveal", inbound.Payload))
	}
	r.received = append(r.received, payload.Share)

	if uint64(len(r.received)) < r.parties.Threshold+1 {
		return sm.WaitForMoreMessages()
	}

	secret, err := share.Reconstruct(r.received, r.parties.Threshold)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	r.result = secret
	r.state = "revealed"
	return sm.Terminated(map[string]interface{}{"value": secret})
}

// CurrentState implements sm.Machine.
func (r *Reveal) CurrentState() sm.StateTag { return r.state }

// Result returns the reconstructed secret once the runtime has terminated
// this machine successfully.
func (r *Reveal) Result() field.Elem { return r.result }

func errUnexpectedPayload(protocolName string, payload interface{}) error {
	return &UnexpectedPayloadError{Protocol: protocolName, Payload: payload}
}

// UnexpectedPayloadError is returned when a protocol receives a message
// payload of a type it does not understand for its current state — always
// a ProtocolViolation, per spec §7.
type UnexpectedPayloadError struct {
	Protocol string
	Payload  interface{}
}

func (e *UnexpectedPayloadError) Error() string {
	return "protocol: " + e.Protocol + ": unexpected payload type"
}
