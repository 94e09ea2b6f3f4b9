package protocol

import (
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// constShare wraps a field element all parties hold identically (a
// degree-0 sharing) as a share.Share, so it can be fed into Mult/Reveal
// without a special case: a constant polynomial trivially satisfies
// "degree <= T", so the GRR re-share in Mult still recombines correctly,
// if more expensively than a dedicated public-times-secret path would be.
func constShare(self uint64, v field.Elem) share.Share {
	return share.Share{Index: self, Value: v}
}

// BitAdder implements BIT-ADDER: given two equal-length vectors of shared
// bits (LSB first) and an optional carry-in, produce their shared sum bits
// and final carry-out via a ripple-carry adder built from the protocol
// library's MULT (for the two AND-shaped terms of each full adder) and
// purely local XOR linearization. There is no teacher analogue for a
// boolean adder circuit over shares; this is built directly from the
// standard MAJ(x,y,c) = xy + c*(x XOR y) full-adder identity, which needs
// exactly two MULT calls per bit rather than the textbook three.
type BitAdder struct {
	parties  Parties
	xs, ys   []share.Share
	carryIn  share.Share
	state    sm.StateTag

	i       int
	sub     int // 0: computing m1=x*y, 1: computing m2=t1*c
	m1, t1  field.Elem
	carry   share.Share
	sumBits []share.Share

	mul   *Mult
	mulRT *sm.Runtime
}

// NewBitAdder constructs a BitAdder over equal-length bit vectors xs, ys
// (LSB first), with the given initial carry-in (pass a zero constShare for
// ordinary addition, or a one constShare to perform two's-complement
// subtraction by first complementing one operand).
func NewBitAdder(parties Parties, xs, ys []share.Share, carryIn share.Share) *BitAdder {
	return &BitAdder{parties: parties, xs: xs, ys: ys, carryIn: carryIn, state: "adding", carry: carryIn}
}

// Step implements sm.Machine.
func (b *BitAdder) Step(inbound *sm.InboundMessage) sm.StepResult {
	if b.i >= len(b.xs) {
		return sm.Terminated(map[string]interface{}{"sum": b.sumBits, "carry": b.carry})
	}

	if b.mul == nil {
		// Start this bit's first product, x_i * y_i.
		b.mul = NewMult(b.parties, b.xs[b.i], b.ys[b.i])
		b.mulRT = newRuntime(b.parties, b.mul)
		b.sub = 0
		out, err := b.mulRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(out)
	}

	out, err := b.mulRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := b.mulRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	product := b.mul.Result()
	f := product.Value.Field()

	if b.sub == 0 {
		b.m1 = product.Value
		xi, yi := b.xs[b.i].Value, b.ys[b.i].Value
		t1 := xi.Add(yi).Sub(f.NewElemUint64(2).Mul(b.m1))
		b.t1 = t1

		b.mul = NewMult(b.parties, constShare(b.parties.Self, t1), b.carry)
		b.mulRT = newRuntime(b.parties, b.mul)
		b.sub = 1
		more, err := b.mulRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(append(out, more...))
	}

	m2 := product.Value
	sum := b.t1.Add(b.carry.Value).Sub(f.NewElemUint64(2).Mul(m2))
	carryOut := b.m1.Add(m2)

	b.sumBits = append(b.sumBits, share.Share{Index: b.parties.Self, Value: sum})
	b.carry = share.Share{Index: b.parties.Self, Value: carryOut}
	b.i++
	b.mul = nil
	b.mulRT = nil

	if b.i >= len(b.xs) {
		b.state = "done"
		return sm.Terminated(map[string]interface{}{"sum": b.sumBits, "carry": b.carry})
	}
	return b.Step(nil)
}

// CurrentState implements sm.Machine.
func (b *BitAdder) CurrentState() sm.StateTag { return b.state }

// Result returns the sum bits (LSB first) and final carry-out once
// terminated.
func (b *BitAdder) Result() (sum []share.Share, carry share.Share) { return b.sumBits, b.carry }

// BitDecomposition implements BIT-DECOMPOSITION: given a share of a,
// produce l shared bits (LSB first) such that a = sum bit_i * 2^i. Built
// from RANDOM-BITWISE (to get a masking value whose bits are already
// shared), REVEAL of the masked value, and BIT-ADDER to subtract the mask
// back off in the bit domain via two's-complement — per spec §4.3's note
// that bit-decomposition is a reduction onto RANDOM-BITWISE and COMPARE
// rather than its own preprocessing element.
type BitDecomposition struct {
	parties Parties
	f       field.Field
	a       share.Share
	l       int
	state   sm.StateTag
	ph      phase

	rbw   *RandomBitwise
	rbwRT *sm.Runtime
	rBits []share.Share
	rFull share.Share

	reveal *Reveal
	revRT  *sm.Runtime

	adder   *BitAdder
	adderRT *sm.Runtime

	result []share.Share
}

// NewBitDecomposition constructs a BitDecomposition machine producing l
// bits for a.
func NewBitDecomposition(parties Parties, f field.Field, a share.Share, l int) *BitDecomposition {
	rbw := NewRandomBitwise(parties, f, l)
	return &BitDecomposition{parties: parties, f: f, a: a, l: l, state: "masking", ph: phaseRan, rbw: rbw, rbwRT: newRuntime(parties, rbw)}
}

func (d *BitDecomposition) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch d.ph {
	case phaseRan:
		return d.stepMask(inbound)
	case phaseReveal:
		return d.stepReveal(inbound)
	default:
		return d.stepAdd(inbound)
	}
}

func (d *BitDecomposition) stepMask(inbound *sm.InboundMessage) sm.StepResult {
	out, err := d.rbwRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := d.rbwRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	d.rBits = d.rbw.Result()
	acc := d.f.Zero()
	power := d.f.One()
	two := d.f.NewElemUint64(2)
	for _, bit := range d.rBits {
		acc = acc.Add(bit.Value.Mul(power))
		power = power.Mul(two)
	}
	d.rFull = share.Share{Index: d.parties.Self, Value: acc}

	masked, _ := d.a.Add(d.rFull)
	d.reveal = NewReveal(d.parties, masked)
	d.revRT = newRuntime(d.parties, d.reveal)
	d.ph = phaseReveal
	d.state = "revealing"
	more, err := d.revRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (d *BitDecomposition) stepReveal(inbound *sm.InboundMessage) sm.StepResult {
	out, err := d.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := d.revRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	c := d.reveal.Result()
	cBits := c.Bits(d.l)

	// (c - r) mod 2^l via two's-complement addition: c + (~r) + 1.
	complement := make([]share.Share, d.l)
	for i, rb := range d.rBits {
		complement[i] = xorPublicBit(rb, true)
	}
	cConst := make([]share.Share, d.l)
	for i, cb := range cBits {
		cConst[i] = constShare(d.parties.Self, cb)
	}

	d.adder = NewBitAdder(d.parties, cConst, complement, constShare(d.parties.Self, d.f.One()))
	d.adderRT = newRuntime(d.parties, d.adder)
	d.ph = phaseDone
	d.state = "adding"
	more, err := d.adderRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (d *BitDecomposition) stepAdd(inbound *sm.InboundMessage) sm.StepResult {
	out, err := d.adderRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := d.adderRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}
	sumBits, _ := d.adder.Result()
	d.result = sumBits
	d.state = "done"
	return sm.Terminated(map[string]interface{}{"bits": sumBits})
}

// CurrentState implements sm.Machine.
func (d *BitDecomposition) CurrentState() sm.StateTag { return d.state }

// Result returns the l shared bits of a (LSB first) once terminated.
func (d *BitDecomposition) Result() []share.Share { return d.result }
