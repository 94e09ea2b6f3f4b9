package program

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/vm"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bc := Bytecode{
		Inputs: []InputSlot{{Name: "x", Addr: vm.Addr(3)}},
		Code: []wireInstr{
			{Op: vm.OpAdd, Dst: 1, Lhs: 0, Rhs: 0},
			{Op: vm.OpExit, Operands: []vm.Addr{1}},
		},
	}

	raw, err := Encode(bc)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].Name != "x" || got.Inputs[0].Addr != 3 {
		t.Fatalf("unexpected inputs after round trip: %+v", got.Inputs)
	}
	if len(got.Code) != 2 || got.Code[0].Op != vm.OpAdd || got.Code[1].Op != vm.OpExit {
		t.Fatalf("unexpected code after round trip: %+v", got.Code)
	}
}

func TestEncodeInstrRoundTripsConstants(t *testing.T) {
	f := field.New(field.Safe64Bits)

	w, err := EncodeInstr(vm.Instr{Op: vm.OpMove, Dst: 2, Const: vm.Public{Elem: f.NewElemUint64(7)}})
	if err != nil {
		t.Fatalf("EncodeInstr: %v", err)
	}
	if !w.HasConst || w.ConstPrivate {
		t.Fatalf("expected a public constant, got %+v", w)
	}

	v, err := w.value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	pub, ok := v.(vm.Public)
	if !ok {
		t.Fatalf("expected vm.Public, got %T", v)
	}
	if pub.Elem.Int().Int64() != 7 {
		t.Fatalf("expected 7, got %s", pub.Elem.Int().Text(10))
	}
}

func TestBuildRejectsUnboundInput(t *testing.T) {
	raw, err := Encode(Bytecode{
		Inputs: []InputSlot{{Name: "x", Addr: vm.Addr(0)}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	build, err := Build("p1", raw)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := build(uuid.New(), map[string]vm.Value{}); err == nil {
		t.Fatal("expected error for unbound input x")
	}
}

func TestBuildSeedsMemoryFromResolvedInputs(t *testing.T) {
	f := field.New(field.Safe64Bits)

	raw, err := Encode(Bytecode{
		Inputs: []InputSlot{{Name: "x", Addr: vm.Addr(5)}},
		Code:   []wireInstr{{Op: vm.OpExit, Operands: []vm.Addr{5}}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	build, err := Build("p3", raw)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	proc, err := build(uuid.New(), map[string]vm.Value{"x": vm.Public{Elem: f.NewElemUint64(42)}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ret := proc.Exec()
	if !ret.IsReady() {
		t.Fatalf("expected the process to run to completion, got %+v", ret)
	}
	stored, ok := proc.Memory.Load(5).(vm.Public)
	if !ok {
		t.Fatalf("expected the bound input to be vm.Public, got %T", proc.Memory.Load(5))
	}
	if stored.Elem.Int().Int64() != 42 {
		t.Fatalf("expected 42, got %s", stored.Elem.Int().Text(10))
	}
}

func TestProcessIDStableAcrossCallsWithSameComputeID(t *testing.T) {
	raw, err := Encode(Bytecode{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	build, err := Build("p2", raw)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	computeID := uuid.New()

	proc1, err := build(computeID, map[string]vm.Value{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proc2, err := build(computeID, map[string]vm.Value{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if proc1.ID != proc2.ID {
		t.Fatalf("expected identical process ids for the same computeID, got %x vs %x", proc1.ID, proc2.ID)
	}

	other, err := build(uuid.New(), map[string]vm.Value{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if proc1.ID == other.ID {
		t.Fatal("expected different computeIDs to produce different process ids")
	}
}
