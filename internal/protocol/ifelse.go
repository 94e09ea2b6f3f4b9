package protocol

import (
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// IfElse implements IF-ELSE: select between two secret-shared values based
// on a secret-shared bit, via the standard linearization
// select(bit,x,y) = y + bit*(x-y), needing exactly one MULT call.
type IfElse struct {
	parties  Parties
	bit, x, y share.Share
	state    sm.StateTag

	mul   *Mult
	mulRT *sm.Runtime
	result share.Share
}

// NewIfElse constructs an IfElse machine selecting x when bit == 1, y
// when bit == 0.
func NewIfElse(parties Parties, bit, x, y share.Share) *IfElse {
	return &IfElse{parties: parties, bit: bit, x: x, y: y, state: "selecting"}
}

// Step implements sm.Machine.
func (s *IfElse) Step(inbound *sm.InboundMessage) sm.StepResult {
	if s.mul == nil {
		diff, _ := s.x.Sub(s.y)
		s.mul = NewMult(s.parties, s.bit, diff)
		s.mulRT = newRuntime(s.parties, s.mul)
		out, err := s.mulRT.Deliver(nil)
		if err != nil {
			return sm.Failed(sm.FailureArithmetic, err)
		}
		return sm.EmitMessages(out)
	}

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

	result, _ := s.y.Add(s.mul.Result())
	s.result = result
	s.state = "done"
	return sm.Terminated(map[string]interface{}{"share": result})
}

// CurrentState implements sm.Machine.
func (s *IfElse) CurrentState() sm.StateTag { return s.state }

// Result returns the selected share once terminated.
func (s *IfElse) Result() share.Share { return s.result }
