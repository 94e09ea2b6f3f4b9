// Package program reconstructs a runnable vm.Process from a compiled
// program's raw bytecode blob, implementing storage.ProgramBuilder. It is
// the loader half of the compiler pipeline spec.md §1 places out of scope
// (the Nada compiler frontend is assumed to already exist): this package
// only has to agree with whatever format that frontend emits.
//
// Grounded on the teacher's core/vm/program package (ID [32]byte, Addr
// uint64, Memory map[Addr]Value, Code []Inst, one Inst type per op), with
// the wire encoding kept independent of vm.Instr itself — vm.Instr carries
// a Const vm.Value and a Pending vm.Intent, both interfaces gob cannot
// round-trip without registering every concrete implementation, where the
// bytecode format only ever needs to carry literal constants, never a
// suspended intent.
package program

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/vm"
)

// InputSlot names one named input's memory address: the compiler assigns
// addresses, so a program's bytecode has to carry the name -> address
// mapping InvokeCompute's resolved inputs (map[string]vm.Value) bind
// against.
type InputSlot struct {
	Name string
	Addr vm.Addr
}

// wireInstr mirrors vm.Instr but replaces its two interface fields
// (Const, Pending) with a wire-safe constant encoding; Pending never
// belongs in a program's static bytecode, it is runtime suspension state.
type wireInstr struct {
	Op       vm.Op
	Dst      vm.Addr
	Lhs      vm.Addr
	Rhs      vm.Addr
	Operands []vm.Addr
	Imm      uint64

	HasConst        bool
	ConstPrivate    bool
	ConstFieldName  string
	ConstElem       string // decimal, meaningful when !ConstPrivate
	ConstShareValue string // decimal, meaningful when ConstPrivate
	ConstShareIndex uint64
}

// Bytecode is the gob-encoded shape a compiled program's blob stores under
// "programs/<id>/bytecode" in BlobStore.
type Bytecode struct {
	Inputs []InputSlot
	Code   []wireInstr
}

// Encode serialises bc for storage. Exported for the compiler/test side
// that produces bytecode blobs; the production path never needs to
// encode, only decode, since program bytecode is written once and
// consumed many times.
func Encode(bc Bytecode) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(bc); err != nil {
		return nil, fmt.Errorf("program: encode bytecode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(raw []byte) (Bytecode, error) {
	var bc Bytecode
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&bc); err != nil {
		return Bytecode{}, fmt.Errorf("program: decode bytecode: %w", err)
	}
	return bc, nil
}

func wireConst(v vm.Value) (wireInstr, error) {
	switch x := v.(type) {
	case vm.Public:
		return wireInstr{HasConst: true, ConstFieldName: string(x.Elem.Field().Name()), ConstElem: x.Elem.Int().Text(10)}, nil
	case vm.Private:
		return wireInstr{HasConst: true, ConstPrivate: true, ConstFieldName: string(x.Share.Value.Field().Name()), ConstShareValue: x.Share.Value.Int().Text(10), ConstShareIndex: x.Share.Index}, nil
	default:
		return wireInstr{}, fmt.Errorf("program: unsupported constant type %T", v)
	}
}

func (w wireInstr) value() (vm.Value, error) {
	if !w.HasConst {
		return nil, nil
	}
	f := field.New(field.Name(w.ConstFieldName))
	if w.ConstPrivate {
		n, ok := new(big.Int).SetString(w.ConstShareValue, 10)
		if !ok {
			return nil, fmt.Errorf("program: malformed private constant %q", w.ConstShareValue)
		}
		return vm.Private{Share: share.Share{Index: w.ConstShareIndex, Value: f.NewElem(n)}}, nil
	}
	n, ok := new(big.Int).SetString(w.ConstElem, 10)
	if !ok {
		return nil, fmt.Errorf("program: malformed public constant %q", w.ConstElem)
	}
	return vm.Public{Elem: f.NewElem(n)}, nil
}

// EncodeInstr converts a ready-to-run vm.Instr into its wire form. Used by
// whatever assembles Bytecode.Code (a compiler, or a test fixture); the
// Pending field is always dropped, a freshly compiled instruction never
// carries one.
func EncodeInstr(inst vm.Instr) (wireInstr, error) {
	w := wireInstr{Op: inst.Op, Dst: inst.Dst, Lhs: inst.Lhs, Rhs: inst.Rhs, Operands: inst.Operands, Imm: inst.Imm}
	if inst.Const != nil {
		cw, err := wireConst(inst.Const)
		if err != nil {
			return wireInstr{}, err
		}
		w.HasConst, w.ConstPrivate = cw.HasConst, cw.ConstPrivate
		w.ConstFieldName, w.ConstElem = cw.ConstFieldName, cw.ConstElem
		w.ConstShareValue, w.ConstShareIndex = cw.ConstShareValue, cw.ConstShareIndex
	}
	return w, nil
}

// Build implements storage.ProgramBuilder: decode the bytecode once per
// FetchProgram call and return a closure that seeds a fresh Process's
// memory from the caller's resolved inputs every time the program runs.
func Build(programID string, bytecode []byte) (func(computeID uuid.UUID, inputs map[string]vm.Value) (*vm.Process, error), error) {
	bc, err := decode(bytecode)
	if err != nil {
		return nil, err
	}

	code := make(vm.Code, len(bc.Code))
	for i, w := range bc.Code {
		v, err := w.value()
		if err != nil {
			return nil, fmt.Errorf("program: instr %d: %w", i, err)
		}
		code[i] = vm.Instr{Op: w.Op, Dst: w.Dst, Lhs: w.Lhs, Rhs: w.Rhs, Operands: w.Operands, Imm: w.Imm, Const: v}
	}
	inputs := bc.Inputs

	return func(computeID uuid.UUID, resolved map[string]vm.Value) (*vm.Process, error) {
		mem := vm.Memory{}
		for _, slot := range inputs {
			v, ok := resolved[slot.Name]
			if !ok {
				return nil, fmt.Errorf("program: input %q not bound", slot.Name)
			}
			mem.Store(slot.Addr, v)
		}

		proc := vm.NewProcess(processID(computeID), mem, code)
		return &proc, nil
	}, nil
}

// processID derives a Process's id deterministically from computeID alone.
// Every cooperating node admits the identical compute under the identical
// computeID (see orchestrator.InvokeComputeWithID) but holds a different
// secret share of the same resolved inputs, so the inputs themselves
// cannot be hashed into a cluster-wide-identical id; computeID already is
// one, by construction, and is unique per InvokeCompute call.
func processID(computeID uuid.UUID) vm.ID {
	var id vm.ID
	copy(id[:], computeID[:])
	return id
}
