package protocol

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// curveOrder is the secp256k1 group order, the modulus ECDSA signatures
// and the threshold key itself are computed in. A distributed-key-
// generation/signing instance uses internal/field.Safe256Bits as the
// Shamir sharing field for its secret scalars, which is safely larger
// than the curve order; scalars are reduced into [0, curveOrder) wherever
// they cross into curve operations.
var curveOrder = secp256k1.S256().N

// ecdsaPointPayload carries one helper's point contribution for a
// reveal-in-the-exponent step (DKG's public key, or SIGN's nonce commit).
type ecdsaPointPayload struct {
	X, Y []byte
}

func toScalar(e field.Elem) *secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	v := new(big.Int).Mod(e.Int(), curveOrder)
	s.SetByteSlice(v.Bytes())
	return &s
}

func scalarBaseMult(e field.Elem) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(toScalar(e), &result)
	result.ToAffine()
	return result
}

func addPoints(a, b secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.AddNonConst(&a, &b, &result)
	result.ToAffine()
	return result
}

func scalePoint(coeff field.Elem, p secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(toScalar(coeff), &p, &result)
	result.ToAffine()
	return result
}

// revealInExponent drives a one-round broadcast-then-combine exchange of
// EC points among the helper set, combining them with the same fixed
// Lagrange coefficients MULT uses — valid because scalar multiplication
// of a fixed base distributes over the Lagrange interpolation the same
// way field multiplication does.
type revealInExponent struct {
	parties Parties
	f       field.Field
	mine    secp256k1.JacobianPoint
	state   sm.StateTag

	received map[uint64]secp256k1.JacobianPoint
	result   secp256k1.JacobianPoint
}

func newRevealInExponent(parties Parties, f field.Field, mine secp256k1.JacobianPoint) *revealInExponent {
	return &revealInExponent{parties: parties, f: f, mine: mine, state: "broadcasting", received: map[uint64]secp256k1.JacobianPoint{}}
}

func (r *revealInExponent) Step(inbound *sm.InboundMessage) sm.StepResult {
	if inbound == nil {
		r.state = "waiting"
		r.received[r.parties.Self] = r.mine
		return sm.EmitMessages(broadcast(r.parties, func(uint64) interface{} {
			return ecdsaPointPayload{X: r.mine.X.Bytes()[:], Y: r.mine.Y.Bytes()[:]}
		}))
	}

	payload, ok := inbound.Payload.(ecdsaPointPayload)
	if !ok {
		return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("revealInExponent", inbound.Payload))
	}
	var p secp256k1.JacobianPoint
	p.X.SetByteSlice(payload.X)
	p.Y.SetByteSlice(payload.Y)
	p.Z.SetInt(1)
	r.received[uint64(inbound.From)] = p

	helperSet := r.parties.HelperSet()
	if uint64(len(r.received)) < uint64(len(helperSet)) {
		return sm.WaitForMoreMessages()
	}

	acc := secp256k1.JacobianPoint{}
	acc.Z.SetInt(0) // point at infinity
	first := true
	for _, idx := range helperSet {
		pt, ok := r.received[idx]
		if !ok {
			return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("revealInExponent", nil))
		}
		lambda := lagrangeCoeffAtZero(r.f, idx, helperSet)
		term := scalePoint(lambda, pt)
		if first {
			acc = term
			first = false
		} else {
			acc = addPoints(acc, term)
		}
	}
	r.result = acc
	r.state = "done"
	return sm.Terminated(nil)
}

func (r *revealInExponent) CurrentState() sm.StateTag { return r.state }

// DKG implements the distributed-key-generation half of threshold ECDSA:
// jointly generate a random Shamir-shared private scalar and publish the
// corresponding public key point, via RAN followed by a reveal-in-the-
// exponent of each helper's base-point multiple. This is a simplified
// semi-honest DKG (no Feldman/Pedersen commitments guarding the exponent
// reveal step against a cheating helper), consistent with spec's
// semi-honest, non-malicious adversary model; a malicious-secure DKG would
// additionally commit to each R_i before opening it.
type DKG struct {
	parties Parties
	f       field.Field
	state   sm.StateTag
	ph      phase

	ran   *Ran
	ranRT *sm.Runtime

	reveal *revealInExponent
	revRT  *sm.Runtime

	privShare share.Share
	pubKey    secp256k1.JacobianPoint
}

// NewDKG constructs a DKG machine over field f (conventionally Safe256Bits).
func NewDKG(parties Parties, f field.Field) *DKG {
	ran := NewRan(parties, f)
	return &DKG{parties: parties, f: f, state: "generating", ph: phaseRan, ran: ran, ranRT: newRuntime(parties, ran)}
}

// Step implements sm.Machine.
func (d *DKG) Step(inbound *sm.InboundMessage) sm.StepResult {
	if d.ph == phaseRan {
		out, err := d.ranRT.Deliver(inbound)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		outcome := d.ranRT.Outcome()
		if outcome == nil {
			return sm.EmitMessages(out)
		}
		if !outcome.Succeeded {
			return sm.Failed(outcome.Failure, outcome.Err)
		}
		d.privShare = d.ran.Result()
		d.reveal = newRevealInExponent(d.parties, d.f, scalarBaseMult(d.privShare.Value))
		d.revRT = newRuntime(d.parties, d.reveal)
		d.ph = phaseReveal
		d.state = "publishing key"
		more, err := d.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(append(out, more...))
	}

	_, err := d.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := d.revRT.Outcome()
	if outcome == nil {
		return sm.WaitForMoreMessages()
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}
	d.pubKey = d.reveal.result
	d.state = "done"
	return sm.Terminated(map[string]interface{}{"priv_share": d.privShare, "pub_key": d.pubKey})
}

// CurrentState implements sm.Machine.
func (d *DKG) CurrentState() sm.StateTag { return d.state }

// Result returns this party's private key share and the joint public key
// once terminated.
func (d *DKG) Result() (priv share.Share, pub secp256k1.JacobianPoint) { return d.privShare, d.pubKey }

// Sign implements threshold ECDSA signing given a Shamir-shared private
// key x and a message digest z: jointly generate a nonce k and its
// inverse via INV-RAN, reveal k*G in the exponent to get the public nonce
// commitment R, then compute the signature scalar s = k^-1*(z + r*x) with
// a single MULT and REVEAL. Grounded in the classical Lagrange-in-the-
// exponent threshold-ECDSA construction (e.g. Gennaro-Goldfeder-style
// protocols), simplified to this crate's semi-honest setting by skipping
// the zero-knowledge range/commitment proofs a malicious-secure version
// would need around the nonce reveal.
type Sign struct {
	parties Parties
	f       field.Field
	x       share.Share
	z       *big.Int
	state   sm.StateTag
	ph      phase

	invRan   *InvRan
	invRanRT *sm.Runtime
	k, kInv  share.Share

	reveal *revealInExponent
	revRT  *sm.Runtime
	r      *big.Int

	mul   *Mult
	mulRT *sm.Runtime

	finalReveal *Reveal
	finalRT     *sm.Runtime

	signatureS *big.Int
}

// NewSign constructs a Sign machine for digest z over the shared key x.
func NewSign(parties Parties, f field.Field, x share.Share, z *big.Int) *Sign {
	invRan := NewInvRan(parties, f)
	return &Sign{parties: parties, f: f, x: x, z: z, state: "nonce", ph: phaseRan, invRan: invRan, invRanRT: newRuntime(parties, invRan)}
}

// Step implements sm.Machine.
func (s *Sign) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch s.ph {
	case phaseRan:
		return s.stepNonce(inbound)
	case phaseReveal:
		return s.stepRevealR(inbound)
	case phaseSquare:
		return s.stepMul(inbound)
	default:
		return s.stepFinal(inbound)
	}
}

func (s *Sign) stepNonce(inbound *sm.InboundMessage) sm.StepResult {
	out, err := s.invRanRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := s.invRanRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}
	s.k, s.kInv = s.invRan.Result()
	s.reveal = newRevealInExponent(s.parties, s.f, scalarBaseMult(s.k.Value))
	s.revRT = newRuntime(s.parties, s.reveal)
	s.ph = phaseReveal
	s.state = "revealing nonce"
	more, err := s.revRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (s *Sign) stepRevealR(inbound *sm.InboundMessage) sm.StepResult {
	_, err := s.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := s.revRT.Outcome()
	if outcome == nil {
		return sm.WaitForMoreMessages()
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	s.r = new(big.Int).Mod(s.reveal.result.X.Bytes()[:], curveOrder)
	rElem := s.f.NewElem(s.r)
	t1 := s.x.Scale(rElem).AddConstant(s.f.NewElem(s.z))

	s.mul = NewMult(s.parties, s.kInv, t1)
	s.mulRT = newRuntime(s.parties, s.mul)
	s.ph = phaseSquare
	s.state = "combining"
	more, err := s.mulRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(more)
}

func (s *Sign) stepMul(inbound *sm.InboundMessage) sm.StepResult {
	out, err := s.mulRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := s.mulRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	s.finalReveal = NewReveal(s.parties, s.mul.Result())
	s.finalRT = newRuntime(s.parties, s.finalReveal)
	s.ph = phaseTerminal
	s.state = "revealing signature"
	more, err := s.finalRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (s *Sign) stepFinal(inbound *sm.InboundMessage) sm.StepResult {
	_, err := s.finalRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := s.finalRT.Outcome()
	if outcome == nil {
		return sm.WaitForMoreMessages()
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	sVal := new(big.Int).Mod(s.finalReveal.Result().Int(), curveOrder)
	// Canonical low-S form, as most verifiers require.
	half := new(big.Int).Rsh(curveOrder, 1)
	if sVal.Cmp(half) > 0 {
		sVal = new(big.Int).Sub(curveOrder, sVal)
	}
	s.signatureS = sVal
	s.state = "done"
	return sm.Terminated(map[string]interface{}{"r": s.r, "s": sVal})
}

// CurrentState implements sm.Machine.
func (s *Sign) CurrentState() sm.StateTag { return s.state }

// Result returns the (r, s) ECDSA signature components once terminated.
func (s *Sign) Result() (r, sVal *big.Int) { return s.r, s.signatureS }

const phaseTerminal phase = phaseDone + 1
