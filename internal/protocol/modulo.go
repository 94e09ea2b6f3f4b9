package protocol

import (
	"errors"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// Mod2mPreprocessing is the correlated randomness MODULO2m and TRUNC
// consume: a shared mask R together with its own low-M bits already
// shared individually (produced by RANDOM-BITWISE at generation time, per
// spec §4.3's note that these elements reduce onto RANDOM-BITWISE/COMPARE
// rather than being generated from scratch per call).
type Mod2mPreprocessing struct {
	R     share.Share
	RBits []share.Share // low M bits of R, LSB first, len == M
}

// Mod2m implements MODULO2m: reduce a shared value modulo 2^M. It reveals
// a masked value once, then recovers (a mod 2^M) via BIT-ADDER performing
// two's-complement subtraction of R's bit-shares from the revealed value's
// public low bits — the same masked-reveal-then-bit-correct shape COMPARE
// uses, grounded in the Catrina-de Hoogh truncation family of protocols.
type Mod2m struct {
	parties Parties
	f       field.Field
	a       share.Share
	m       int
	prep    Mod2mPreprocessing
	state   sm.StateTag
	ph      phase

	reveal *Reveal
	revRT  *sm.Runtime

	adder   *BitAdder
	adderRT *sm.Runtime

	resultBits []share.Share
	result     share.Share
}

// NewMod2m constructs a Mod2m machine computing a mod 2^m.
func NewMod2m(parties Parties, f field.Field, a share.Share, m int, prep Mod2mPreprocessing) *Mod2m {
	return &Mod2m{parties: parties, f: f, a: a, m: m, prep: prep, state: "masking", ph: phaseRan}
}

// Step implements sm.Machine.
func (mm *Mod2m) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch mm.ph {
	case phaseRan:
		return mm.stepReveal(inbound)
	default:
		return mm.stepAdd(inbound)
	}
}

func (mm *Mod2m) stepReveal(inbound *sm.InboundMessage) sm.StepResult {
	if mm.reveal == nil {
		masked, _ := mm.a.Add(mm.prep.R)
		mm.reveal = NewReveal(mm.parties, masked)
		mm.revRT = newRuntime(mm.parties, mm.reveal)
		mm.state = "revealing"
		out, err := mm.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(out)
	}

	out, err := mm.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := mm.revRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	c := mm.reveal.Result()
	cBits := c.Bits(mm.m)
	cConst := make([]share.Share, mm.m)
	for i, cb := range cBits {
		cConst[i] = constShare(mm.parties.Self, cb)
	}
	complement := make([]share.Share, mm.m)
	for i, rb := range mm.prep.RBits {
		complement[i] = xorPublicBit(rb, true)
	}

	mm.adder = NewBitAdder(mm.parties, cConst, complement, constShare(mm.parties.Self, mm.f.One()))
	mm.adderRT = newRuntime(mm.parties, mm.adder)
	mm.ph = phaseSquare
	mm.state = "adding"
	more, err := mm.adderRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (mm *Mod2m) stepAdd(inbound *sm.InboundMessage) sm.StepResult {
	out, err := mm.adderRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := mm.adderRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	sumBits, _ := mm.adder.Result()
	mm.resultBits = sumBits

	acc := mm.f.Zero()
	power := mm.f.One()
	two := mm.f.NewElemUint64(2)
	for _, bit := range sumBits {
		acc = acc.Add(bit.Value.Mul(power))
		power = power.Mul(two)
	}
	mm.result = share.Share{Index: mm.parties.Self, Value: acc}
	mm.state = "done"
	return sm.Terminated(map[string]interface{}{"share": mm.result})
}

// CurrentState implements sm.Machine.
func (mm *Mod2m) CurrentState() sm.StateTag { return mm.state }

// Result returns the share of a mod 2^m once terminated, together with its
// individual bit shares (useful to callers, such as TRUNCPR, that need
// both).
func (mm *Mod2m) Result() (value share.Share, bits []share.Share) { return mm.result, mm.resultBits }

// ErrModulusNotPowerOfTwo is returned by Modulo when asked to reduce by a
// public modulus that is not a power of two. General-modulus reduction
// would need its own nonlinear correlated preprocessing (a shared
// (R div m, R mod m) pair generated via a binary long-division bit
// circuit over RANDOM-BITWISE output) rather than the bit-adder
// subtraction MODULO2m uses; this module restricts MODULO to the
// power-of-two case, which covers every use the fixed-point/bounded
// integer arithmetic in this spec actually needs.
var ErrModulusNotPowerOfTwo = errors.New("protocol: modulo by a non-power-of-two public modulus is not supported")

// Modulo implements MODULO for a public power-of-two modulus m, by
// delegating to Mod2m after checking m's shape.
func NewModulo(parties Parties, f field.Field, a share.Share, m uint64, prep Mod2mPreprocessing) (*Mod2m, error) {
	bits := log2PowerOfTwo(m)
	if bits < 0 {
		return nil, ErrModulusNotPowerOfTwo
	}
	return NewMod2m(parties, f, a, bits, prep), nil
}

func log2PowerOfTwo(m uint64) int {
	if m == 0 || m&(m-1) != 0 {
		return -1
	}
	bits := 0
	for m > 1 {
		m >>= 1
		bits++
	}
	return bits
}

// Trunc implements TRUNC: arithmetic right shift by m bits, i.e.
// floor(a / 2^m). Computed as (a - (a mod 2^m)) * inv(2^m), a purely local
// operation once Mod2m has produced a mod 2^m.
type Trunc struct {
	parties Parties
	f       field.Field
	a       share.Share
	m       int
	mod2m   *Mod2m
	modRT   *sm.Runtime
	state   sm.StateTag
	result  share.Share
}

// NewTrunc constructs a Trunc machine computing floor(a / 2^m).
func NewTrunc(parties Parties, f field.Field, a share.Share, m int, prep Mod2mPreprocessing) *Trunc {
	mod2m := NewMod2m(parties, f, a, m, prep)
	return &Trunc{parties: parties, f: f, a: a, m: m, mod2m: mod2m, modRT: newRuntime(parties, mod2m), state: "reducing"}
}

// Step implements sm.Machine.
func (t *Trunc) Step(inbound *sm.InboundMessage) sm.StepResult {
	out, err := t.modRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := t.modRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	remainder, _ := t.mod2m.Result()
	diff, _ := t.a.Sub(remainder)
	scale, err := t.f.NewElemUint64(1 << uint(t.m)).Inv()
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	t.result = diff.Scale(scale)
	t.state = "done"
	return sm.Terminated(map[string]interface{}{"share": t.result})
}

// CurrentState implements sm.Machine.
func (t *Trunc) CurrentState() sm.StateTag { return t.state }

// Result returns the share of floor(a/2^m) once terminated.
func (t *Trunc) Result() share.Share { return t.result }

// TruncPr implements TRUNCPR: round-to-nearest truncation by m bits,
// computed as Trunc(a + 2^(m-1), m). This is a deterministic
// round-half-up rounding rather than the literature's randomized rounding
// (which avoids a one-ulp bias at the cost of its own extra preprocessing
// correlation); documented here as a simplification, since fixed-point
// programs in this spec only observe the rounding direction, not its
// statistical bias.
type TruncPr struct {
	*Trunc
}

// NewTruncPr constructs a TruncPr machine.
func NewTruncPr(parties Parties, f field.Field, a share.Share, m int, prep Mod2mPreprocessing) *TruncPr {
	if m > 0 {
		rounding := f.NewElemUint64(1 << uint(m-1))
		a = a.AddConstant(rounding)
	}
	return &TruncPr{Trunc: NewTrunc(parties, f, a, m, prep)}
}
