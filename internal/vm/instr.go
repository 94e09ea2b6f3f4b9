package vm

// Op names one instruction a Process can execute. The arithmetic ops
// (Add/Sub/Neg/MulPub/Exp/Inv) are purely local; every other op dispatches
// to the protocol library and suspends the Process until its result
// arrives, mirroring the teacher's instMul/instOpen/instGenerateRn split
// between Ready() local steps and NotReady(intent) effectful steps.
type Op int

const (
	OpMove Op = iota
	OpAdd
	OpSub
	OpNeg
	OpMulPub
	OpExp
	OpInv

	OpReveal
	OpMult
	OpRan
	OpRanBit
	OpRandomBitwise
	OpInvRan
	OpCompare
	OpMod2m
	OpModulo
	OpTrunc
	OpTruncPr
	OpDiv
	OpEquals
	OpEqualsIntegerSecret
	OpIfElse
	OpBitDecompose

	OpExit
)

// Instr is one bytecode instruction. Not every field is meaningful for
// every Op; Dst/Lhs/Rhs/Operands/Imm/Const are interpreted per-Op exactly
// the way the teacher's asm package defines one struct type per
// instruction and only exercises the fields that instruction needs.
type Instr struct {
	Op       Op
	Dst      Addr
	Lhs      Addr
	Rhs      Addr
	Operands []Addr // extra operands for bit-parallel ops (BIT-ADDER, IF-ELSE selector+branches)
	Imm      uint64 // modulus bit-length, divisor, bit-length l, etc.
	Const    Value  // immediate operand for OpMove
	Pending  Intent // set by the VM on first suspend; nil once resolved
}

// Code is a straight-line sequence of Instr, the unit the VM's compiler
// emits per DAG node. Branching and looping are expressed in the DAG that
// schedules Processes against the orchestrator, not inside a Process's own
// Code, matching the teacher's model where process.Process never jumps.
type Code []Instr
