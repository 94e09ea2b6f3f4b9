// Package share implements Shamir secret sharing over an internal/field
// Field, generalizing the teacher's core/vss/shamir package (which only
// worked over one hard-coded field) to the three configurable primes a
// nilVM cluster may run with.
package share

import (
	"errors"

	"github.com/nilvm/node/internal/field"
)

// ErrDifferentFields is returned when shares from different fields are
// combined.
var ErrDifferentFields = errors.New("share: shares belong to different fields")

// ErrInsufficientShares is returned when Reconstruct is given fewer than
// threshold+1 shares.
var ErrInsufficientShares = errors.New("share: insufficient shares to reconstruct")

// Share is a single party's piece of a secret, a point (Index, Value) on a
// polynomial of degree at most T whose constant term is the secret. Index is
// never zero: index zero is reserved for the secret itself (mirrors
// core/vss/shamir.Split's panic on a zero index, here rejected instead of
// panicking since indices arrive over the wire).
type Share struct {
	Index uint64
	Value field.Elem
}

// Shares is a slice of Share.
type Shares []Share

// For returns the share addressed to the given index, or the zero Share if
// none is present.
func (ss Shares) For(index uint64) Share {
	for _, s := range ss {
		if s.Index == index {
			return s
		}
	}
	return Share{}
}

// Add returns the share of a+b given shares of a and b at the same index;
// this is a local, non-interactive operation (additive homomorphism).
func (s Share) Add(o Share) (Share, error) {
	if s.Index != o.Index {
		return Share{}, errors.New("share: cannot add shares with different indices")
	}
	return Share{Index: s.Index, Value: s.Value.Add(o.Value)}, nil
}

// Sub returns the share of a-b given shares of a and b at the same index.
func (s Share) Sub(o Share) (Share, error) {
	if s.Index != o.Index {
		return Share{}, errors.New("share: cannot subtract shares with different indices")
	}
	return Share{Index: s.Index, Value: s.Value.Sub(o.Value)}, nil
}

// Scale returns the share of c*a given a share of a and a public constant c.
func (s Share) Scale(c field.Elem) Share {
	return Share{Index: s.Index, Value: s.Value.Mul(c)}
}

// AddConstant returns the share of a+c given a share of a and a public
// constant c. Every party adds c directly to its own share: the constant
// polynomial c takes the value c at every evaluation point, so the shares
// (c, c, c, ...) are a valid sharing of c.
func (s Share) AddConstant(c field.Elem) Share {
	return Share{Index: s.Index, Value: s.Value.Add(c)}
}

// Split evaluates a secret-sharing polynomial with constant term secret and
// uniformly random higher coefficients of degree t, at the given indices
// (none of which may be zero), returning one Share per index.
func Split(f field.Field, secret field.Elem, t uint64, indices []uint64) (Shares, error) {
	coeffs := make([]field.Elem, t+1)
	coeffs[0] = secret
	for i := uint64(1); i <= t; i++ {
		coeffs[i] = f.Random()
	}

	shares := make(Shares, len(indices))
	for i, idx := range indices {
		if idx == 0 {
			return nil, errors.New("share: index zero is reserved for the secret")
		}
		shares[i] = Share{Index: idx, Value: evaluate(coeffs, idx, f)}
	}
	return shares, nil
}

func evaluate(coeffs []field.Elem, x uint64, f field.Field) field.Elem {
	xElem := f.NewElemUint64(x)
	result := f.Zero()
	power := f.One()
	for _, c := range coeffs {
		result = result.Add(c.Mul(power))
		power = power.Mul(xElem)
	}
	return result
}

// Reconstruct performs Lagrange interpolation at x=0 over the given shares
// to recover the shared secret. Reconstruction is independent of which
// T+1-or-more shares are supplied, per the reveal-correctness invariant in
// spec §8. It requires at least threshold+1 shares.
//
// The interpolation deliberately performs the same sequence of field
// operations regardless of which indices are present, to avoid branching on
// secret-dependent data and uphold the constant-time requirement for REVEAL
// reconstruction noted in spec §9.
func Reconstruct(shares Shares, threshold uint64) (field.Elem, error) {
	if uint64(len(shares)) < threshold+1 {
		return field.Elem{}, ErrInsufficientShares
	}
	f := shares[0].Value.Field()
	for _, s := range shares {
		if !sameField(s.Value.Field(), f) {
			return field.Elem{}, ErrDifferentFields
		}
	}

	secret := f.Zero()
	for i, si := range shares {
		xi := f.NewElemUint64(si.Index)
		num := f.One()
		den := f.One()
		for j, sj := range shares {
			if i == j {
				continue
			}
			xj := f.NewElemUint64(sj.Index)
			num = num.Mul(xj)
			den = den.Mul(xj.Sub(xi))
		}
		coeff, err := num.Div(den)
		if err != nil {
			return field.Elem{}, err
		}
		secret = secret.Add(si.Value.Mul(coeff))
	}
	return secret, nil
}

func sameField(a, b field.Field) bool {
	return a.Prime().Cmp(b.Prime()) == 0
}
