// Package vm implements the program VM (VM): DAG evaluation of a compiled
// Program over public and private values, dispatching the effectful
// instructions of the protocol library (PL) out to running protocol
// instances and resuming once their results arrive.
//
// It generalizes the teacher's core/vm/vm.go central dispatch loop (Exec ->
// process.Intent -> routed to a background task -> result delivered back
// into vm.exec) from a fixed three-protocol wiring (rng/mul/open) to the
// full protocol library of internal/protocol, and replaces the teacher's
// unsafe.Pointer-addressed flat memory (core/vm/process/process.go) with an
// ordinary map[Addr]Value, the idiomatic fit for a VM whose address space
// is not fixed at compile time per invocation.
package vm

import (
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
)

// Value is any value a Process's memory can hold: a public field element or
// a private Shamir share.
type Value interface {
	IsValue()
}

// Public is a publicly known field element.
type Public struct {
	Elem field.Elem
}

func (Public) IsValue() {}

// Private is one party's share of a secret.
type Private struct {
	Share share.Share
}

func (Private) IsValue() {}

// Add returns lhs+rhs. Public+Public stays public; any operand being
// Private makes the result Private, following additive homomorphism over
// Shamir shares.
func Add(lhs, rhs Value) Value {
	switch l := lhs.(type) {
	case Public:
		switch r := rhs.(type) {
		case Public:
			return Public{l.Elem.Add(r.Elem)}
		case Private:
			return Private{r.Share.AddConstant(l.Elem)}
		}
	case Private:
		switch r := rhs.(type) {
		case Public:
			return Private{l.Share.AddConstant(r.Elem)}
		case Private:
			s, err := l.Share.Add(r.Share)
			if err != nil {
				panic(err)
			}
			return Private{s}
		}
	}
	panic("vm: unexpected value type in Add")
}

// Sub returns lhs-rhs.
func Sub(lhs, rhs Value) Value {
	switch l := lhs.(type) {
	case Public:
		switch r := rhs.(type) {
		case Public:
			return Public{l.Elem.Sub(r.Elem)}
		case Private:
			return Private{r.Share.Scale(l.Elem.Field().NewElemUint64(1).Neg()).AddConstant(l.Elem)}
		}
	case Private:
		switch r := rhs.(type) {
		case Public:
			return Private{l.Share.AddConstant(r.Elem.Neg())}
		case Private:
			s, err := l.Share.Sub(r.Share)
			if err != nil {
				panic(err)
			}
			return Private{s}
		}
	}
	panic("vm: unexpected value type in Sub")
}

// Neg returns -v.
func Neg(v Value) Value {
	switch x := v.(type) {
	case Public:
		return Public{x.Elem.Neg()}
	case Private:
		return Private{x.Share.Scale(x.Share.Value.Field().NewElemUint64(1).Neg())}
	}
	panic("vm: unexpected value type in Neg")
}

// MulPub returns lhs*rhs where rhs is known to be Public: a local scale,
// never a protocol invocation.
func MulPub(lhs Value, rhs Public) Value {
	switch l := lhs.(type) {
	case Public:
		return Public{l.Elem.Mul(rhs.Elem)}
	case Private:
		return Private{l.Share.Scale(rhs.Elem)}
	}
	panic("vm: unexpected value type in MulPub")
}
