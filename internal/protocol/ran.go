package protocol

import (
	"math/big"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// ranPayload carries one participant's sub-share of its own locally chosen
// random contribution.
type ranPayload struct {
	Sub share.Share
}

// Ran implements RAN: every participant splits a locally chosen random
// field element into degree-T shares for everyone, and each participant
// sums the sub-shares it receives into its own share of a jointly random,
// nobody-knows secret. Grounded on the sum-of-local-contributions
// construction in core/vm/rng.go's Rnger, generalized onto internal/share.
type Ran struct {
	parties Parties
	f       field.Field
	state   sm.StateTag

	subShares map[uint64]share.Share
	result    share.Share
}

// NewRan constructs a Ran machine over field f.
func NewRan(parties Parties, f field.Field) *Ran {
	return &Ran{parties: parties, f: f, state: "sharing", subShares: map[uint64]share.Share{}}
}

// Step implements sm.Machine.
func (m *Ran) Step(inbound *sm.InboundMessage) sm.StepResult {
	if inbound == nil {
		m.state = "waiting"
		mine := m.f.Random()
		subShares, err := share.Split(m.f, mine, m.parties.Threshold, m.parties.Indices)
		if err != nil {
			panic(err)
		}
		m.subShares[m.parties.Self] = subShares.For(m.parties.Self)

		var out []sm.OutboundMessage
		for _, s := range subShares {
			if s.Index == m.parties.Self {
				continue
			}
			out = append(out, sm.OutboundMessage{To: sm.PeerID(s.Index), Payload: ranPayload{Sub: s}})
		}
		return sm.EmitMessages(out)
	}

	payload, ok := inbound.Payload.(ranPayload)
	if !ok {
		return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("Ran", inbound.Payload))
	}
	m.subShares[uint64(inbound.From)] = payload.Sub

	if uint64(len(m.subShares)) < uint64(len(m.parties.Indices)) {
		return sm.WaitForMoreMessages()
	}

	acc := m.f.Zero()
	for _, idx := range m.parties.Indices {
		acc = acc.Add(m.subShares[idx].Value)
	}
	m.result = share.Share{Index: m.parties.Self, Value: acc}
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"share": m.result})
}

// CurrentState implements sm.Machine.
func (m *Ran) CurrentState() sm.StateTag { return m.state }

// Result returns this party's share of the jointly random secret once
// terminated.
func (m *Ran) Result() share.Share { return m.result }

// phase enumerates the sequential sub-protocols a composite machine
// (RanBit, InvRan) drives in order.
type phase int

// RanBit implements RAN-BIT: produce a share of a uniformly random bit in
// {0,1}, via the classical "random square root" construction — RAN, then
// MULT the result with itself, REVEAL the square, and take a public square
// root with math/big's ModSqrt (the teacher has no RAN-BIT of its own; this
// composes core/vm/rng.go's RAN idiom with the standard number-theoretic
// technique, using stdlib big.Int rather than a hand-rolled Tonelli-Shanks
// since math/big already implements it).
type RanBit struct {
	parties Parties
	f       field.Field
	state   sm.StateTag
	ph      phase

	ran    *Ran
	ranRT  *sm.Runtime
	r      share.Share
	sq     *Mult
	sqRT   *sm.Runtime
	rr     share.Share
	reveal *Reveal
	revRT  *sm.Runtime

	result share.Share
	retry  bool
}

const (
	phaseRan phase = iota
	phaseSquare
	phaseReveal
	phaseDone
)

// ErrRanBitRetry is returned (wrapped in a Failed StepResult via
// FailureArithmetic) when the revealed square happens to be zero, the one
// case the construction cannot proceed from; callers retry with a fresh
// RanBit instance.
type ErrRanBitRetry struct{}

func (ErrRanBitRetry) Error() string { return "protocol: ran-bit square revealed as zero, retry" }

// NewRanBit constructs a RanBit machine over field f.
func NewRanBit(parties Parties, f field.Field) *RanBit {
	ran := NewRan(parties, f)
	return &RanBit{parties: parties, f: f, state: "ran", ph: phaseRan, ran: ran, ranRT: newRuntime(parties, ran)}
}

// Step implements sm.Machine, delegating to whichever sub-protocol runtime
// is currently active and advancing the phase when it terminates.
func (m *RanBit) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch m.ph {
	case phaseRan:
		return m.stepRan(inbound)
	case phaseSquare:
		return m.stepSquare(inbound)
	case phaseReveal:
		return m.stepReveal(inbound)
	default:
		return sm.WaitForMoreMessages()
	}
}

func (m *RanBit) stepRan(inbound *sm.InboundMessage) sm.StepResult {
	out, err := m.ranRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	if outcome := m.ranRT.Outcome(); outcome != nil {
		if !outcome.Succeeded {
			return sm.Failed(outcome.Failure, outcome.Err)
		}
		m.r = m.ran.Result()
		m.sq = NewMult(m.parties, m.r, m.r)
		m.sqRT = newRuntime(m.parties, m.sq)
		m.ph = phaseSquare
		m.state = "squaring"
		more, err := m.sqRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(append(toOutbound(out), toOutbound(more)...))
	}
	return sm.EmitMessages(toOutbound(out))
}

func (m *RanBit) stepSquare(inbound *sm.InboundMessage) sm.StepResult {
	out, err := m.sqRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	if outcome := m.sqRT.Outcome(); outcome != nil {
		if !outcome.Succeeded {
			return sm.Failed(outcome.Failure, outcome.Err)
		}
		m.rr = m.sq.Result()
		m.reveal = NewReveal(m.parties, m.rr)
		m.revRT = newRuntime(m.parties, m.reveal)
		m.ph = phaseReveal
		m.state = "revealing"
		more, err := m.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(append(toOutbound(out), toOutbound(more)...))
	}
	return sm.EmitMessages(toOutbound(out))
}

func (m *RanBit) stepReveal(inbound *sm.InboundMessage) sm.StepResult {
	_, err := m.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := m.revRT.Outcome()
	if outcome == nil {
		return sm.WaitForMoreMessages()
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	squared := m.reveal.Result()
	if squared.IsZero() {
		m.retry = true
		m.state = "retry"
		return sm.Failed(sm.FailureArithmetic, ErrRanBitRetry{})
	}

	root := modSqrt(m.f, squared)
	rootInv, err := root.Inv()
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	// x = r / root in {+1, -1}; bit = (x+1) * inv(2), purely local.
	x := share.Share{Index: m.r.Index, Value: m.r.Value.Mul(rootInv)}
	two := m.f.NewElemUint64(2)
	twoInv, err := two.Inv()
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	bit := x.AddConstant(m.f.One()).Scale(twoInv)

	m.result = bit
	m.ph = phaseDone
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"share": bit})
}

// CurrentState implements sm.Machine.
func (m *RanBit) CurrentState() sm.StateTag { return m.state }

// Result returns this party's share of the random bit once terminated.
func (m *RanBit) Result() share.Share { return m.result }

// modSqrt returns a square root of v in f using math/big's ModSqrt, valid
// because every field this package uses has a prime modulus.
func modSqrt(f field.Field, v field.Elem) field.Elem {
	root := new(big.Int).ModSqrt(v.Int(), f.Prime())
	return f.NewElem(root)
}

// toOutbound adapts a possibly-nil []sm.OutboundMessage slice for
// append-concatenation convenience in the composite machines above.
func toOutbound(msgs []sm.OutboundMessage) []sm.OutboundMessage { return msgs }

// RandomBitwise implements RANDOM-BITWISE: produce l independent shared
// random bits by running l independent RanBit instances side by side. The
// spec names this as its own primitive because callers (BIT-DECOMPOSITION)
// need the whole vector to land together; the construction itself is just
// repetition of RAN-BIT.
type RandomBitwise struct {
	parties Parties
	f       field.Field
	l       int
	state   sm.StateTag

	bits []*RanBit
	rts  []*sm.Runtime
	done []bool

	result []share.Share
}

// NewRandomBitwise constructs a RandomBitwise machine producing l bits.
func NewRandomBitwise(parties Parties, f field.Field, l int) *RandomBitwise {
	rb := &RandomBitwise{parties: parties, f: f, l: l, state: "bits", done: make([]bool, l)}
	for i := 0; i < l; i++ {
		b := NewRanBit(parties, f)
		rb.bits = append(rb.bits, b)
		rb.rts = append(rb.rts, newRuntime(parties, b))
	}
	return rb
}

// Step implements sm.Machine. Inbound messages for this composite
// protocol are tagged with which bit index they belong to via
// randomBitwisePayload; a nil inbound pumps every child's initial step.
type randomBitwisePayload struct {
	BitIndex int
	Inner    interface{}
}

func (m *RandomBitwise) Step(inbound *sm.InboundMessage) sm.StepResult {
	var out []sm.OutboundMessage

	deliver := func(i int, innerMsg *sm.InboundMessage) {
		if m.done[i] {
			return
		}
		msgs, err := m.rts[i].Deliver(innerMsg)
		if err == nil {
			for _, o := range msgs {
				out = append(out, sm.OutboundMessage{To: o.To, Payload: randomBitwisePayload{BitIndex: i, Inner: o.Payload}})
			}
		}
		if oc := m.rts[i].Outcome(); oc != nil {
			m.done[i] = true
		}
	}

	if inbound == nil {
		for i := range m.bits {
			deliver(i, nil)
		}
	} else {
		payload, ok := inbound.Payload.(randomBitwisePayload)
		if !ok {
			return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("RandomBitwise", inbound.Payload))
		}
		deliver(payload.BitIndex, &sm.InboundMessage{From: inbound.From, Round: 0, Payload: payload.Inner})
	}

	allDone := true
	for _, d := range m.done {
		if !d {
			allDone = false
			break
		}
	}
	if !allDone {
		if len(out) > 0 {
			return sm.EmitMessages(out)
		}
		return sm.WaitForMoreMessages()
	}

	m.result = make([]share.Share, m.l)
	for i, b := range m.bits {
		m.result[i] = b.Result()
	}
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"bits": m.result})
}

// CurrentState implements sm.Machine.
func (m *RandomBitwise) CurrentState() sm.StateTag { return m.state }

// Result returns the l shared random bits once terminated.
func (m *RandomBitwise) Result() []share.Share { return m.result }

// InvRan implements INV-RAN: jointly produce a random field element r and
// its inverse, both shared, without ever revealing r itself. Composes RAN
// twice, one MULT, and one REVEAL; if the revealed product happens to be
// zero (one of the two RAN outputs was zero) the whole instance fails with
// ErrInvRanRetry and the caller starts over with fresh randomness.
type InvRan struct {
	parties Parties
	f       field.Field
	state   sm.StateTag
	ph      phase

	ranR, ranS   *Ran
	ranRRT, ranSRT *sm.Runtime
	rDone, sDone bool
	rVal, sVal   share.Share

	mul    *Mult
	mulRT  *sm.Runtime
	prod   share.Share

	reveal *Reveal
	revRT  *sm.Runtime

	rResult, rInvResult share.Share
}

// ErrInvRanRetry is returned when INV-RAN's revealed masking product is
// zero, the one case the construction cannot invert from.
type ErrInvRanRetry struct{}

func (ErrInvRanRetry) Error() string { return "protocol: inv-ran masking product revealed as zero, retry" }

// NewInvRan constructs an InvRan machine over field f.
func NewInvRan(parties Parties, f field.Field) *InvRan {
	ranR := NewRan(parties, f)
	ranS := NewRan(parties, f)
	return &InvRan{
		parties: parties, f: f, state: "ran", ph: phaseRan,
		ranR: ranR, ranRRT: newRuntime(parties, ranR),
		ranS: ranS, ranSRT: newRuntime(parties, ranS),
	}
}

type invRanPayload struct {
	Which string // "r" or "s"
	Inner interface{}
}

// Step implements sm.Machine.
func (m *InvRan) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch m.ph {
	case phaseRan:
		return m.stepRan(inbound)
	case phaseSquare: // reused to mean "multiplying"
		return m.stepMul(inbound)
	case phaseReveal:
		return m.stepReveal(inbound)
	default:
		return sm.WaitForMoreMessages()
	}
}

func (m *InvRan) stepRan(inbound *sm.InboundMessage) sm.StepResult {
	var out []sm.OutboundMessage

	deliverRan := func(rt *sm.Runtime, which string, innerMsg *sm.InboundMessage, done *bool) {
		if *done {
			return
		}
		msgs, err := rt.Deliver(innerMsg)
		if err == nil {
			for _, o := range msgs {
				out = append(out, sm.OutboundMessage{To: o.To, Payload: invRanPayload{Which: which, Inner: o.Payload}})
			}
		}
		if oc := rt.Outcome(); oc != nil {
			*done = true
		}
	}

	if inbound == nil {
		deliverRan(m.ranRRT, "r", nil, &m.rDone)
		deliverRan(m.ranSRT, "s", nil, &m.sDone)
	} else {
		payload, ok := inbound.Payload.(invRanPayload)
		if !ok {
			return sm.Failed(sm.FailureProtocolViolation, errUnexpectedPayload("InvRan", inbound.Payload))
		}
		inner := &sm.InboundMessage{From: inbound.From, Round: 0, Payload: payload.Inner}
		if payload.Which == "r" {
			deliverRan(m.ranRRT, "r", inner, &m.rDone)
		} else {
			deliverRan(m.ranSRT, "s", inner, &m.sDone)
		}
	}

	if !m.rDone || !m.sDone {
		if len(out) > 0 {
			return sm.EmitMessages(out)
		}
		return sm.WaitForMoreMessages()
	}

	if !m.ranRRT.Outcome().Succeeded {
		return sm.Failed(m.ranRRT.Outcome().Failure, m.ranRRT.Outcome().Err)
	}
	if !m.ranSRT.Outcome().Succeeded {
		return sm.Failed(m.ranSRT.Outcome().Failure, m.ranSRT.Outcome().Err)
	}

	m.rVal = m.ranR.Result()
	m.sVal = m.ranS.Result()
	m.mul = NewMult(m.parties, m.rVal, m.sVal)
	m.mulRT = newRuntime(m.parties, m.mul)
	m.ph = phaseSquare
	m.state = "multiplying"
	more, err := m.mulRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (m *InvRan) stepMul(inbound *sm.InboundMessage) sm.StepResult {
	out, err := m.mulRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	if outcome := m.mulRT.Outcome(); outcome != nil {
		if !outcome.Succeeded {
			return sm.Failed(outcome.Failure, outcome.Err)
		}
		m.prod = m.mul.Result()
		m.reveal = NewReveal(m.parties, m.prod)
		m.revRT = newRuntime(m.parties, m.reveal)
		m.ph = phaseReveal
		m.state = "revealing"
		more, err := m.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(append(out, more...))
	}
	return sm.EmitMessages(out)
}

func (m *InvRan) stepReveal(inbound *sm.InboundMessage) sm.StepResult {
	_, err := m.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := m.revRT.Outcome()
	if outcome == nil {
		return sm.WaitForMoreMessages()
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	t := m.reveal.Result()
	if t.IsZero() {
		m.state = "retry"
		return sm.Failed(sm.FailureArithmetic, ErrInvRanRetry{})
	}
	tInv, err := t.Inv()
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	// r^-1 = s * t^-1, purely local once t is public.
	m.rResult = m.rVal
	m.rInvResult = m.sVal.Scale(tInv)
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"r": m.rResult, "rInv": m.rInvResult})
}

// CurrentState implements sm.Machine.
func (m *InvRan) CurrentState() sm.StateTag { return m.state }

// Result returns this party's shares of r and r^-1 once terminated.
func (m *InvRan) Result() (r, rInv share.Share) { return m.rResult, m.rInvResult }
