package vm

import "fmt"

// Return is the outcome of one Process.Exec call: either the process ran
// to completion of its straight-line Code (Ready), or it hit an
// instruction that needs a protocol result before it can continue
// (NotReady, carrying the Intent to resolve) — mirroring the teacher's
// process.Return (Ready()/NotReady(intent)).
type Return struct {
	intent Intent
	ready  bool
}

// Ready reports a Process has finished its Code without needing anything
// external.
func Ready() Return { return Return{ready: true} }

// NotReady reports a Process is suspended on intent (nil once the intent
// has already been dispatched and the Process is merely waiting on its
// result).
func NotReady(intent Intent) Return { return Return{intent: intent, ready: false} }

func (r Return) Intent() Intent { return r.intent }
func (r Return) IsReady() bool  { return r.ready }

// ID identifies one Process within a ComputeInstance's DAG.
type ID [32]byte

// Process is one DAG node: a straight-line sequence of Instr operating
// over its own Memory, paused and resumed by the VM across intent
// boundaries exactly like the teacher's process.Process. An instruction
// that suspends stores its Intent (with the typed result channel it
// allocated) back into Code[PC]; re-entering Exec checks that channel with
// a non-blocking select before re-suspending, the same "inst.xCh == nil"
// idiom the teacher's execInstGenerateRn/execInstMul use.
type Process struct {
	ID     ID
	Memory Memory
	Code   Code
	PC     int

	exit []Value
}

// NewProcess constructs a Process ready to execute code over mem.
func NewProcess(id ID, mem Memory, code Code) Process {
	return Process{ID: id, Memory: mem, Code: code}
}

// exitValues returns the values an OpExit instruction collected, or nil if
// the Process finished by falling off the end of its Code without one.
func (p *Process) exitValues() []Value {
	return p.exit
}

// Exec runs instructions until the Process finishes or suspends on a new
// (or still-pending) intent.
func (p *Process) Exec() Return {
	for p.PC < len(p.Code) {
		ret := p.execInst(p.Code[p.PC])
		if !ret.IsReady() {
			return ret
		}
		p.PC++
	}
	return Ready()
}

func (p *Process) execInst(inst Instr) Return {
	switch inst.Op {
	case OpMove:
		p.Memory.Store(inst.Dst, inst.Const)
		return Ready()

	case OpAdd:
		p.Memory.Store(inst.Dst, Add(p.Memory.Load(inst.Lhs), p.Memory.Load(inst.Rhs)))
		return Ready()

	case OpSub:
		p.Memory.Store(inst.Dst, Sub(p.Memory.Load(inst.Lhs), p.Memory.Load(inst.Rhs)))
		return Ready()

	case OpNeg:
		p.Memory.Store(inst.Dst, Neg(p.Memory.Load(inst.Lhs)))
		return Ready()

	case OpMulPub:
		rhs, ok := p.Memory.Load(inst.Rhs).(Public)
		if !ok {
			return NotReady(IntentToError{Err: fmt.Errorf("vm: MulPub rhs at %d is not public", inst.Rhs)})
		}
		p.Memory.Store(inst.Dst, MulPub(p.Memory.Load(inst.Lhs), rhs))
		return Ready()

	case OpExp:
		lhs, lok := p.Memory.Load(inst.Lhs).(Public)
		rhs, rok := p.Memory.Load(inst.Rhs).(Public)
		if !lok || !rok {
			return NotReady(IntentToError{Err: fmt.Errorf("vm: Exp requires two public operands at %d", p.PC)})
		}
		p.Memory.Store(inst.Dst, Public{lhs.Elem.Pow(rhs.Elem.Int().Uint64())})
		return Ready()

	case OpInv:
		lhs, ok := p.Memory.Load(inst.Lhs).(Public)
		if !ok {
			return NotReady(IntentToError{Err: fmt.Errorf("vm: Inv requires a public operand at %d", p.PC)})
		}
		inv, err := lhs.Elem.Inv()
		if err != nil {
			return NotReady(IntentToError{Err: err})
		}
		p.Memory.Store(inst.Dst, Public{inv})
		return Ready()

	case OpExit:
		vals := make([]Value, len(inst.Operands))
		for i, a := range inst.Operands {
			vals[i] = p.Memory.Load(a)
		}
		p.exit = vals
		return Ready()

	default:
		return p.execProtocolInst(inst)
	}
}
