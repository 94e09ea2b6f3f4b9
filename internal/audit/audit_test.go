package audit_test

import (
	"testing"

	"github.com/nilvm/node/internal/audit"
)

func TestAuditPassesWellFormedProgram(t *testing.T) {
	prog := audit.Program{
		MemorySize: 4,
		InputAddrs: map[int]bool{0: true, 1: true},
		Instructions: []audit.Instruction{
			{Kind: "Add", Dst: 2, Operands: []int{0, 1}},
			{Kind: "Reveal", Dst: 3, Operands: []int{2}, Element: ""},
		},
	}
	res := audit.Audit(audit.Config{}, prog)
	if !res.OK() {
		t.Fatalf("expected audit to pass, got %v", res)
	}
}

func TestAuditRejectsMemoryOverLimit(t *testing.T) {
	prog := audit.Program{MemorySize: 100, InputAddrs: map[int]bool{}}
	res := audit.Audit(audit.Config{MaxMemorySize: 10}, prog)
	if res.OK() {
		t.Fatal("expected audit to fail on memory size")
	}
}

func TestAuditRejectsInstructionKindOverLimit(t *testing.T) {
	prog := audit.Program{
		MemorySize: 4,
		InputAddrs: map[int]bool{0: true},
		Instructions: []audit.Instruction{
			{Kind: "Mult", Dst: 1, Operands: []int{0}},
			{Kind: "Mult", Dst: 2, Operands: []int{0}},
		},
	}
	res := audit.Audit(audit.Config{MaxInstructions: map[string]int{"Mult": 1}}, prog)
	if res.OK() {
		t.Fatal("expected audit to fail on instruction kind limit")
	}
}

func TestAuditRejectsPreprocessingOverLimit(t *testing.T) {
	prog := audit.Program{
		MemorySize: 4,
		InputAddrs: map[int]bool{0: true, 1: true},
		Instructions: []audit.Instruction{
			{Kind: "Compare", Dst: 2, Operands: []int{0, 1}, Element: "Compare", ElementCost: 1},
			{Kind: "Compare", Dst: 3, Operands: []int{0, 1}, Element: "Compare", ElementCost: 1},
		},
	}
	res := audit.Audit(audit.Config{MaxPreprocessing: map[string]int{"Compare": 1}}, prog)
	if res.OK() {
		t.Fatal("expected audit to fail on preprocessing usage limit")
	}
}

func TestAuditRejectsUndefinedReference(t *testing.T) {
	prog := audit.Program{
		MemorySize: 4,
		InputAddrs: map[int]bool{0: true},
		Instructions: []audit.Instruction{
			{Kind: "Add", Dst: 2, Operands: []int{0, 1}},
		},
	}
	res := audit.Audit(audit.Config{}, prog)
	if res.OK() {
		t.Fatal("expected audit to fail on undefined operand reference")
	}
}
