// Package audit implements the program auditor (PA): static checks a
// compiled Program must pass before the compute orchestrator (CO) will run
// it — memory size, per-instruction-kind and per-preprocessing-element
// limits, and MIR well-typedness. None of these checks appear in the
// teacher (republicprotocol/tau has no equivalent static gate — its
// process.Process runs whatever Code it is given), so this package is
// grounded directly against the invariants spec.md §4.8 lists rather than
// against teacher code, following the teacher's general error-result shape
// (a small sentinel-tagged Result rather than a bare error) used elsewhere
// in the codebase (process.Return, task.Error).
package audit

import "fmt"

// Instruction is one node of a Program's MIR: a bytecode or
// protocol-library operation, its operand addresses, and (for
// protocol-library operations) the preprocessing element it consumes.
type Instruction struct {
	Kind        string
	Dst         int
	Operands    []int
	Element     string // PreprocessingElement name this instruction draws from, or "" if none
	ElementCost int    // number of preprocessing units this one instruction consumes
}

// Program is the minimal shape PA needs to check: the MIR instruction
// list, the memory size it was compiled against, and the set of addresses
// the contract declares as inputs (MIR references outside that set and
// outside prior Dst writes are undefined).
type Program struct {
	Instructions []Instruction
	MemorySize   int
	InputAddrs   map[int]bool
}

// Config mirrors spec.md's ProgramAuditorConfig: per-kind and
// per-preprocessing-element ceilings. A kind or element absent from the
// map is unbounded, per §4.8.
type Config struct {
	MaxMemorySize    int
	MaxInstructions  map[string]int
	MaxPreprocessing map[string]int
}

// Result is PA's verdict: AuditOk (Result{}) or AuditFailed{Reason},
// returned to the client verbatim and never retried.
type Result struct {
	Reason string
}

// OK reports whether the audit passed.
func (r Result) OK() bool { return r.Reason == "" }

// Error lets Result satisfy the error interface when OK() is false, so
// callers that want a single return value can do `if err := res; err !=
// nil`-style checks by wrapping OK()==false as an error.
func (r Result) Error() string {
	return fmt.Sprintf("audit: %s", r.Reason)
}

// AuditOk is the zero Result.
func AuditOk() Result { return Result{} }

// AuditFailed builds a failing Result with the given reason.
func AuditFailed(reason string) Result { return Result{Reason: reason} }

// Audit runs every static check spec.md §4.8 requires against prog,
// stopping at the first failure (AuditFailed is never partial — the first
// violation found is the one reported, and the client never sees a retry).
func Audit(cfg Config, prog Program) Result {
	if cfg.MaxMemorySize > 0 && prog.MemorySize > cfg.MaxMemorySize {
		return AuditFailed(fmt.Sprintf("memory size %d exceeds limit %d", prog.MemorySize, cfg.MaxMemorySize))
	}

	if res := auditInstructionCounts(cfg, prog); !res.OK() {
		return res
	}
	if res := auditPreprocessingCounts(cfg, prog); !res.OK() {
		return res
	}
	if res := auditMIR(prog); !res.OK() {
		return res
	}
	return AuditOk()
}

func auditInstructionCounts(cfg Config, prog Program) Result {
	counts := map[string]int{}
	for _, inst := range prog.Instructions {
		counts[inst.Kind]++
	}
	for kind, limit := range cfg.MaxInstructions {
		if counts[kind] > limit {
			return AuditFailed(fmt.Sprintf("instruction kind %q count %d exceeds limit %d", kind, counts[kind], limit))
		}
	}
	return AuditOk()
}

func auditPreprocessingCounts(cfg Config, prog Program) Result {
	usage := map[string]int{}
	for _, inst := range prog.Instructions {
		if inst.Element != "" {
			usage[inst.Element] += inst.ElementCost
		}
	}
	for element, limit := range cfg.MaxPreprocessing {
		if usage[element] > limit {
			return AuditFailed(fmt.Sprintf("preprocessing element %q usage %d exceeds limit %d", element, usage[element], limit))
		}
	}
	return AuditOk()
}

// auditMIR checks that every operand an instruction reads was either
// declared an input or written by a prior instruction in program order,
// and that no instruction writes to an address outside [0, MemorySize).
func auditMIR(prog Program) Result {
	defined := map[int]bool{}
	for addr := range prog.InputAddrs {
		defined[addr] = true
	}

	for i, inst := range prog.Instructions {
		if inst.Dst < 0 || inst.Dst >= prog.MemorySize {
			return AuditFailed(fmt.Sprintf("instruction %d writes out-of-range address %d", i, inst.Dst))
		}
		for _, operand := range inst.Operands {
			if !defined[operand] {
				return AuditFailed(fmt.Sprintf("instruction %d references undefined address %d", i, operand))
			}
		}
		defined[inst.Dst] = true
	}
	return AuditOk()
}
