// Package preprocessing implements the per-element-type pools of unused
// preprocessing material, the leader-driven batch scheduler that refills
// them, and atomic reservation/deletion bookkeeping — the PM component of
// the compute core.
//
// It generalizes the monotone, deadline-swept state tables the teacher
// keeps per nonce in core/vm/rng.go (LocalRnSharesTable/VoteTable, each a
// map keyed by an identifier plus a StartedAt used for cleanup) into the
// Pool's {generated, reserved, candidate_delete, deleted} counters, keyed by
// element type instead of by nonce.
package preprocessing

// Element identifies a class of preprocessing material, each backed by its
// own Pool.
type Element string

const (
	ElementCompare               Element = "Compare"
	ElementDivisionIntegerSecret Element = "DivisionIntegerSecret"
	ElementModulo                Element = "Modulo"
	ElementPublicOutputEquality  Element = "PublicOutputEquality"
	ElementEqualsIntegerSecret   Element = "EqualsIntegerSecret"
	ElementTruncPr               Element = "TruncPr"
	ElementTrunc                 Element = "Trunc"
	ElementRandomInteger         Element = "RandomInteger"
	ElementRandomBoolean         Element = "RandomBoolean"
)

// Elements lists every preprocessing element type the PM manages pools for.
var Elements = []Element{
	ElementCompare,
	ElementDivisionIntegerSecret,
	ElementModulo,
	ElementPublicOutputEquality,
	ElementEqualsIntegerSecret,
	ElementTruncPr,
	ElementTrunc,
	ElementRandomInteger,
	ElementRandomBoolean,
}
