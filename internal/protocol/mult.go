package protocol

import (
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// multPayload carries one helper's degree-T sub-share of its local
// product d_i = a_i * b_i.
type multPayload struct {
	Sub share.Share
}

// Mult implements MULT: given degree-T shares a_i, b_i of two secrets,
// produce a degree-T share of their product, via the classical
// Gennaro-Rabin-Rabin re-share. Grounded on core/vm/mul/mul.go, which
// performs the same local-product-then-reshare-then-recombine sequence
// (there called "open-combine" of the multiplier's local shares).
//
// Round 0: every party in the helper set (the first 2T+1 indices) locally
// computes d_i = a_i*b_i (a point on a degree-2T polynomial whose value at
// 0 is the product) and re-shares d_i with a fresh degree-T polynomial,
// sending one sub-share to every other participant.
//
// Round 1 (folded into the same step once enough sub-shares have
// arrived): every participant combines the sub-shares it received from the
// helper set using the fixed Lagrange coefficients for reconstructing the
// degree-2T polynomial's value at 0, producing its own degree-T share of
// the product.
type Mult struct {
	parties Parties
	a, b    share.Share
	state   sm.StateTag

	helperSet []uint64
	subShares map[uint64]share.Share // from helper index -> sub-share I received
	result    share.Share
}

// NewMult constructs a Mult machine for the caller's shares a and b of the
// two secrets being multiplied.
func NewMult(parties Parties, a, b share.Share) *Mult {
	return &Mult{
		parties:   parties,
		a:         a,
		b:         b,
		state:     "resharing",
		helperSet: parties.HelperSet(),
		subShares: map[uint64]share.Share{},
	}
}

func inSet(set []uint64, v uint64) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Step implements sm.Machine.
func (m *Mult) Step(inbound *sm.InboundMessage) sm.StepResult {
	if inbound == nil {
		m.state = "waiting"
		var out []sm.OutboundMessage
		if inSet(m.helperSet, m.parties.Self) {
			out = m.reshareLocalProduct()
		}
		return sm.EmitMessages(out)
	}

	payload, ok := inbound.Payload.(multPayload)
	if !ok {
		return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("Mult", inbound.Payload))
	}
	from := uint64(inbound.From)
	if !inSet(m.helperSet, from) {
		return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("Mult", inbound.Payload))
	}
	m.subShares[from] = payload.Sub

	if uint64(len(m.subShares)) < uint64(len(m.helperSet)) {
		// Still need our own contribution if we're in the helper set; that
		// is folded in locally below rather than sent to ourselves.
		if inSet(m.helperSet, m.parties.Self) {
			if _, have := m.subShares[m.parties.Self]; !have {
				return sm.WaitForMoreMessages()
			}
		}
		if uint64(len(m.subShares)) < uint64(len(m.helperSet)) {
			return sm.WaitForMoreMessages()
		}
	}

	result, err := m.combine()
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	m.result = result
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"share": result})
}

// reshareLocalProduct computes this helper's local product share and
// re-shares it with a fresh degree-T polynomial, recording its own
// sub-share locally and returning the sub-shares destined for peers.
func (m *Mult) reshareLocalProduct() []sm.OutboundMessage {
	f := m.a.Value.Field()
	d := m.a.Value.Mul(m.b.Value)

	subShares, err := share.Split(f, d, m.parties.Threshold, m.parties.Indices)
	if err != nil {
		// Split only fails on a zero participant index or a threshold that
		// does not fit the participant count, both configuration errors
		// caught long before a protocol instance is ever started.
		panic(err)
	}

	m.subShares[m.parties.Self] = subShares.For(m.parties.Self)

	var out []sm.OutboundMessage
	for _, s := range subShares {
		if s.Index == m.parties.Self {
			continue
		}
		out = append(out, sm.OutboundMessage{To: sm.PeerID(s.Index), Payload: multPayload{Sub: s}})
	}
	return out
}

// combine recombines the sub-shares received from the helper set using the
// fixed Lagrange coefficients for reconstructing the degree-2T local
// product polynomial's value at zero, producing this party's degree-T
// share of a*b.
func (m *Mult) combine() (share.Share, error) {
	f := m.a.Value.Field()
	acc := f.Zero()
	for _, idx := range m.helperSet {
		sub, ok := m.subShares[idx]
		if !ok {
			return share.Share{}, &UnexpectedPayloadError{Protocol: "Mult"}
		}
		lambda := lagrangeCoeffAtZero(f, idx, m.helperSet)
		acc = acc.Add(sub.Value.Mul(lambda))
	}
	return share.Share{Index: m.parties.Self, Value: acc}, nil
}

// CurrentState implements sm.Machine.
func (m *Mult) CurrentState() sm.StateTag { return m.state }

// Result returns this party's share of the product once terminated.
func (m *Mult) Result() share.Share { return m.result }

// PubMult implements PUB-MULT: multiply a secret share by a publicly known
// field element. This needs no communication at all — every party simply
// scales its own share — so it is not an sm.Machine; it is a pure
// function, matching the teacher's treatment of public-scalar operations
// as local-only in core/vm/proc.
func PubMult(s share.Share, public field.Elem) share.Share {
	return s.Scale(public)
}
