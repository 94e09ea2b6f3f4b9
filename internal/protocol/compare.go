package protocol

import (
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// ComparePreprocessing is the correlated randomness COMPARE consumes: a
// shared mask R, uniformly random over a range twice the represented
// integer domain (so masking is statistically hiding), together with a
// share of R's own top bit at the chosen range — both produced ahead of
// time by the preprocessing manager's generator for ElementCompare.
//
// Values flowing through this protocol library represent bounded-range
// integers embedded in a much larger prime field, the usual MPC
// convention; RangeBits is that bound, chosen comfortably smaller than the
// field's bit length so a-b+R never wraps the field modulus.
type ComparePreprocessing struct {
	R     share.Share
	RMSB  share.Share
	RangeBits int
}

// Compare implements COMPARE: a single masked REVEAL followed by a local
// XOR of the public and secret top bits, per the Catrina-de Hoogh
// comparison construction. It is intentionally a one-round protocol,
// consistent with spec §4.3's description of COMPARE consuming its own
// dedicated preprocessing element rather than recursively invoking other
// protocol-library operations.
type Compare struct {
	parties Parties
	a, b    share.Share
	prep    ComparePreprocessing
	state   sm.StateTag

	reveal *Reveal
	revRT  *sm.Runtime
	result share.Share
}

// NewCompare constructs a Compare machine testing a < b.
func NewCompare(parties Parties, a, b share.Share, prep ComparePreprocessing) *Compare {
	return &Compare{parties: parties, a: a, b: b, prep: prep, state: "masking"}
}

// Step implements sm.Machine.
func (c *Compare) Step(inbound *sm.InboundMessage) sm.StepResult {
	if c.reveal == nil {
		diff, _ := c.a.Sub(c.b)
		masked, _ := diff.Add(c.prep.R)
		c.reveal = NewReveal(c.parties, masked)
		c.revRT = newRuntime(c.parties, c.reveal)
		c.state = "revealing"
		out, err := c.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(out)
	}

	out, err := c.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := c.revRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	d := c.reveal.Result()
	msb := d.Bits(c.prep.RangeBits + 1)[c.prep.RangeBits]
	isNegativePublic := !msb.IsZero()

	c.result = xorPublicBit(c.prep.RMSB, isNegativePublic)
	c.state = "done"
	return sm.Terminated(map[string]interface{}{"share": c.result})
}

// CurrentState implements sm.Machine.
func (c *Compare) CurrentState() sm.StateTag { return c.state }

// Result returns the share of the bit (1 if a < b, else 0) once
// terminated.
func (c *Compare) Result() share.Share { return c.result }
