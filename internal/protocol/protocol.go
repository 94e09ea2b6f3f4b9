// Package protocol implements the protocol library (PL): the concrete
// cryptographic sub-protocols the program VM composes into programs —
// REVEAL, MULT/PUB-MULT, RAN/RAN-BIT/RANDOM-BITWISE/INV-RAN, COMPARE,
// MODULO2m/MODULO, TRUNC/TRUNCPR, DIV, EQUALS, IF-ELSE,
// BIT-DECOMPOSITION/BIT-ADDER, and threshold-ECDSA DKG/sign.
//
// Every protocol here is an internal/sm.Machine, driven by an
// internal/sm.Runtime exactly the way the teacher's opener
// (core/vm/open/open.go) and multiplier (core/vm/mul/mul.go) are driven by
// the teacher's core/task runtime — one Step per inbound peer message,
// gated on "have I heard from the helper set yet."
package protocol

import (
	"fmt"
	"sort"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

// Parties describes the participant set a protocol instance runs over: the
// caller's own index, the full index list, and the reconstruction
// threshold T (a degree-T sharing tolerates T corrupt parties).
type Parties struct {
	Self      uint64
	Indices   []uint64
	Threshold uint64
}

// HelperSet returns the first 2T+1 participant indices, in ascending
// order — the fixed helper set MULT uses as the Lagrange basis for
// reconstructing a degree-2T polynomial, per the teacher's
// core/vm/mul/mul.go convention of using a fixed-size leading subset of
// the participant list rather than a randomly chosen one.
func (p Parties) HelperSet() []uint64 {
	sorted := append([]uint64{}, p.Indices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := 2*p.Threshold + 1
	if uint64(len(sorted)) < n {
		n = uint64(len(sorted))
	}
	return sorted[:n]
}

// lagrangeCoeffAtZero returns the Lagrange basis coefficient for index idx
// evaluated at x=0, over the given set of indices, in field f.
func lagrangeCoeffAtZero(f field.Field, idx uint64, indices []uint64) field.Elem {
	num := f.One()
	den := f.One()
	xi := f.NewElemUint64(idx)
	for _, j := range indices {
		if j == idx {
			continue
		}
		xj := f.NewElemUint64(j)
		num = num.Mul(xj.Neg())
		den = den.Mul(xi.Sub(xj))
	}
	inv, err := den.Inv()
	if err != nil {
		// Distinct indices in a field larger than the participant count
		// never collide, so den is never zero; a panic here would
		// indicate a configuration bug (duplicate participant indices).
		panic(fmt.Sprintf("protocol: degenerate Lagrange basis: %v", err))
	}
	return num.Mul(inv)
}

// Outcome mirrors sm.Outcome but typed for this package's callers: a
// protocol instance terminates with either a share of a secret result, a
// public (revealed) field element, or a bit, never more than one.
type Outcome struct {
	Share  *share.Share
	Public *field.Elem
	Bit    bool
	Err    error
}

// newRuntime is a small convenience wrapper so every protocol constructor
// in this package wires itself into an sm.Runtime the same way.
func newRuntime(parties Parties, machine sm.Machine) *sm.Runtime {
	peers := make([]sm.PeerID, len(parties.Indices))
	for i, idx := range parties.Indices {
		peers[i] = sm.PeerID(idx)
	}
	return sm.NewRuntime(peers, machine)
}

// xorPublicBit returns the share of x XOR p, where p is a publicly known
// bit and x is a shared bit, using the standard linearization
// p XOR x = p + x - 2px, which is entirely local once p is public.
func xorPublicBit(x share.Share, p bool) share.Share {
	f := x.Value.Field()
	if !p {
		return x
	}
	one := f.One()
	two := f.NewElemUint64(2)
	coeff := one.Sub(two) // 1 - 2*1 = -1
	return x.Scale(coeff).AddConstant(one)
}

// broadcast builds one OutboundMessage per peer other than self, all
// carrying the same payload — the shape every GRR-style re-share and
// RAN/RAN-BIT protocol in this package needs at least once.
func broadcast(parties Parties, payload func(to uint64) interface{}) []sm.OutboundMessage {
	var out []sm.OutboundMessage
	for _, idx := range parties.Indices {
		if idx == parties.Self {
			continue
		}
		out = append(out, sm.OutboundMessage{To: sm.PeerID(idx), Payload: payload(idx)})
	}
	return out
}
