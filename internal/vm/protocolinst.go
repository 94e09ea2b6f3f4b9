package vm

import (
	"fmt"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
)

// execProtocolInst handles every Op that dispatches to the protocol
// library. Each case follows the same two-phase shape as the teacher's
// execInstGenerateRn/execInstMul: on first visit there is no Pending
// intent yet, so one is built (allocating its typed result channel) and
// stored back into Code[PC] before returning NotReady(intent); on every
// later visit the stored intent's channel is polled with a non-blocking
// select, either consuming the result and advancing or re-suspending.
func (p *Process) execProtocolInst(inst Instr) Return {
	switch inst.Op {
	case OpReveal:
		return p.suspendReveal(inst)
	case OpMult:
		return p.suspendMult(inst)
	case OpRan:
		return p.suspendRan(inst)
	case OpRanBit:
		return p.suspendRanBit(inst)
	case OpRandomBitwise:
		return p.suspendRandomBitwise(inst)
	case OpInvRan:
		return p.suspendInvRan(inst)
	case OpCompare:
		return p.suspendCompare(inst)
	case OpMod2m:
		return p.suspendMod2m(inst)
	case OpModulo:
		return p.suspendModulo(inst)
	case OpTrunc:
		return p.suspendTrunc(inst)
	case OpTruncPr:
		return p.suspendTruncPr(inst)
	case OpDiv:
		return p.suspendDiv(inst)
	case OpEquals:
		return p.suspendEquals(inst)
	case OpEqualsIntegerSecret:
		return p.suspendEqualsIntegerSecret(inst)
	case OpIfElse:
		return p.suspendIfElse(inst)
	case OpBitDecompose:
		return p.suspendBitDecompose(inst)
	default:
		return NotReady(IntentToError{Err: fmt.Errorf("vm: unimplemented op %v", inst.Op)})
	}
}

func privateAt(p *Process, addr Addr) (share.Share, error) {
	v, ok := p.Memory.Load(addr).(Private)
	if !ok {
		return share.Share{}, fmt.Errorf("vm: operand at %d is not private", addr)
	}
	return v.Share, nil
}

func (p *Process) suspendReveal(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToReveal); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Public{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	x, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToReveal{Share: x, Ret: make(chan field.Elem, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendMult(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToMult); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	x, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	y, err := privateAt(p, inst.Rhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToMult{X: x, Y: y, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendRan(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToRan); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	intent := IntentToRan{Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendRanBit(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToRanBit); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	intent := IntentToRanBit{Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendRandomBitwise(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToRandomBitwise); ok {
		select {
		case result := <-pending.Ret:
			for i, addr := range inst.Operands {
				p.Memory.Store(addr, Private{result[i]})
			}
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	intent := IntentToRandomBitwise{L: len(inst.Operands), Ret: make(chan []share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendInvRan(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToInvRan); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result[0]})
			if len(inst.Operands) > 0 {
				p.Memory.Store(inst.Operands[0], Private{result[1]})
			}
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	intent := IntentToInvRan{Ret: make(chan [2]share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendCompare(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToCompare); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	b, err := privateAt(p, inst.Rhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToCompare{A: a, B: b, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendMod2m(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToMod2m); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToMod2m{A: a, M: int(inst.Imm), Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendModulo(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToModulo); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToModulo{A: a, M: inst.Imm, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendTrunc(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToTrunc); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToTrunc{A: a, M: int(inst.Imm), Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendTruncPr(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToTruncPr); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToTruncPr{A: a, M: int(inst.Imm), Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendDiv(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToDiv); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToDiv{A: a, D: inst.Imm, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendEquals(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToEquals); ok {
		select {
		case result := <-pending.Ret:
			f := p.Memory.Load(inst.Lhs).(Private).Share.Value.Field()
			b := f.Zero()
			if result {
				b = f.One()
			}
			p.Memory.Store(inst.Dst, Public{b})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	b, err := privateAt(p, inst.Rhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToEquals{A: a, B: b, Ret: make(chan bool, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendEqualsIntegerSecret(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToEqualsIntegerSecret); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	b, err := privateAt(p, inst.Rhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToEqualsIntegerSecret{A: a, B: b, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendIfElse(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToIfElse); ok {
		select {
		case result := <-pending.Ret:
			p.Memory.Store(inst.Dst, Private{result})
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	if len(inst.Operands) < 2 {
		return NotReady(IntentToError{Err: fmt.Errorf("vm: IfElse needs [x, y] operands at %d", p.PC)})
	}
	bit, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	x, err := privateAt(p, inst.Operands[0])
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	y, err := privateAt(p, inst.Operands[1])
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToIfElse{Bit: bit, X: x, Y: y, Ret: make(chan share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}

func (p *Process) suspendBitDecompose(inst Instr) Return {
	if pending, ok := p.Code[p.PC].Pending.(IntentToBitDecompose); ok {
		select {
		case result := <-pending.Ret:
			for i, addr := range inst.Operands {
				p.Memory.Store(addr, Private{result[i]})
			}
			p.Code[p.PC].Pending = nil
			return Ready()
		default:
			return NotReady(nil)
		}
	}
	a, err := privateAt(p, inst.Lhs)
	if err != nil {
		return NotReady(IntentToError{Err: err})
	}
	intent := IntentToBitDecompose{A: a, L: len(inst.Operands), Ret: make(chan []share.Share, 1)}
	p.Code[p.PC].Pending = intent
	return NotReady(intent)
}
