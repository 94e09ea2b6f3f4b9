package protocol

import (
	"math/big"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// DivPreprocessing is the correlated randomness DIV (public divisor)
// consumes: a pair of shares Rq, Rr such that R = Rq*d + Rr with
// 0 <= Rr < d, for the specific public divisor d this instance is for.
// Generating (Rq, Rr) from a jointly random R is itself a small binary
// long-division circuit over RANDOM-BITWISE output (R is generated bit by
// bit, then divided by the public d bit-by-bit the same way long division
// is done by hand); that generation-time circuit is the preprocessing
// manager's concern, not this package's — DIV itself only consumes the
// already-generated pair.
type DivPreprocessing struct {
	Rq, Rr    share.Share
	ComparePrep ComparePreprocessing
}

// Div implements DIV with a public divisor: floor(a / d). One masked
// reveal recovers floor((a+R)/d) publicly; a single COMPARE call recovers
// the one-bit borrow correction needed when the masked remainder wrapped
// past d, per the classical public-divisor masking construction.
type Div struct {
	parties Parties
	f       field.Field
	a       share.Share
	d       uint64
	prep    DivPreprocessing
	state   sm.StateTag
	ph      phase

	reveal *Reveal
	revRT  *sm.Runtime

	cmp   *Compare
	cmpRT *sm.Runtime

	qPublic field.Elem
	result  share.Share
}

// NewDiv constructs a Div machine computing floor(a / d) for public
// divisor d > 0.
func NewDiv(parties Parties, f field.Field, a share.Share, d uint64, prep DivPreprocessing) *Div {
	return &Div{parties: parties, f: f, a: a, d: d, prep: prep, state: "masking", ph: phaseRan}
}

// Step implements sm.Machine.
func (dv *Div) Step(inbound *sm.InboundMessage) sm.StepResult {
	switch dv.ph {
	case phaseRan:
		return dv.stepReveal(inbound)
	default:
		return dv.stepCompare(inbound)
	}
}

func (dv *Div) stepReveal(inbound *sm.InboundMessage) sm.StepResult {
	if dv.reveal == nil {
		rShare := dv.prep.Rq.Scale(dv.f.NewElemUint64(dv.d))
		rShare, _ = rShare.Add(dv.prep.Rr)
		masked, _ := dv.a.Add(rShare)
		dv.reveal = NewReveal(dv.parties, masked)
		dv.revRT = newRuntime(dv.parties, dv.reveal)
		dv.state = "revealing"
		out, err := dv.revRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(out)
	}

	out, err := dv.revRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := dv.revRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	c := dv.reveal.Result()
	dBig := new(big.Int).SetUint64(dv.d)
	q, cMod := new(big.Int).QuoRem(c.Int(), dBig, new(big.Int))
	dv.qPublic = dv.f.NewElem(q)

	cModShare := constShare(dv.parties.Self, dv.f.NewElem(cMod))
	dv.cmp = NewCompare(dv.parties, cModShare, dv.prep.Rr, dv.prep.ComparePrep)
	dv.cmpRT = newRuntime(dv.parties, dv.cmp)
	dv.ph = phaseSquare
	dv.state = "correcting"
	more, err := dv.cmpRT.Deliver(nil)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	return sm.EmitMessages(append(out, more...))
}

func (dv *Div) stepCompare(inbound *sm.InboundMessage) sm.StepResult {
	out, err := dv.cmpRT.Deliver(inbound)
	if err != nil {
		return sm.Failed(sm.FailureArithmetic, err)
	}
	outcome := dv.cmpRT.Outcome()
	if outcome == nil {
		return sm.EmitMessages(out)
	}
	if !outcome.Succeeded {
		return sm.Failed(outcome.Failure, outcome.Err)
	}

	borrow := dv.cmp.Result()
	qShare := constShare(dv.parties.Self, dv.qPublic)
	result, _ := qShare.Sub(dv.prep.Rq)
	result, _ = result.Sub(borrow)
	dv.result = result
	dv.state = "done"
	return sm.Terminated(map[string]interface{}{"share": result})
}

// CurrentState implements sm.Machine.
func (dv *Div) CurrentState() sm.StateTag { return dv.state }

// Result returns the share of floor(a/d) once terminated.
func (dv *Div) Result() share.Share { return dv.result }
