// Package field implements modular integer arithmetic over one of the three
// safe primes supported by a nilVM cluster. It generalizes the single
// hard-coded prime used by the teacher's core/vss/algebra package into a
// family of named fields selectable by cluster configuration.
package field

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// Name identifies one of the three well-known safe primes a cluster may be
// configured to use.
type Name string

const (
	Safe64Bits  Name = "safe_64_bits"
	Safe128Bits Name = "safe_128_bits"
	Safe256Bits Name = "safe_256_bits"
)

var primes = map[Name]string{
	// 64-bit safe prime.
	Safe64Bits: "18446744072637906947",
	// 128-bit safe prime.
	Safe128Bits: "340282366920938463463374607429104828419",
	// 256-bit safe prime.
	Safe256Bits: "115792089237316195423570985008687907853269984665640564039457584007913129639747",
}

// ErrNotInField is returned when an operand does not lie in [0, P).
var ErrNotInField = errors.New("field: value not in [0, p)")

// ErrDivisionByZero is returned by Inv and Div when the divisor is zero.
var ErrDivisionByZero = errors.New("field: division by zero")

// Field is the integers modulo a prime P. It is comparable by value (two
// Fields with the same prime behave identically) and carries no mutable
// state, so a Field value can be freely shared across goroutines.
type Field struct {
	name  Name
	prime *big.Int
}

// New returns the Field named by name. It panics if name is not one of the
// three supported primes — this is a configuration-time error, not a
// runtime one, mirroring the teacher's NewField panicking on a bad prime.
func New(name Name) Field {
	s, ok := primes[name]
	if !ok {
		panic("field: unknown field name " + string(name))
	}
	p, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("field: malformed prime constant for " + string(name))
	}
	return Field{name: name, prime: p}
}

// Name returns the field's configured name.
func (f Field) Name() Name { return f.name }

// Prime returns a copy of the field's modulus.
func (f Field) Prime() *big.Int {
	return new(big.Int).Set(f.prime)
}

// Elem is an element of a Field: an integer in [0, P).
type Elem struct {
	field Field
	value *big.Int
}

// gobWireElem is Elem's on-the-wire shape: field and value are both
// unexported, so gob's default reflection-based encoding would silently
// drop them. GobEncode/GobDecode give gob (and anything else that respects
// the encoding.BinaryMarshaler-like convention) an explicit round trip
// instead, the same decimal-string-plus-field-name shape internal/storage
// already uses to persist values in S3.
type gobWireElem struct {
	Name  Name
	Value string
}

// GobEncode implements gob.GobEncoder.
func (e Elem) GobEncode() ([]byte, error) {
	return json.Marshal(gobWireElem{Name: e.field.name, Value: e.value.Text(10)})
}

// GobDecode implements gob.GobDecoder.
func (e *Elem) GobDecode(data []byte) error {
	var wire gobWireElem
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("field: decode element: %w", err)
	}
	v, ok := new(big.Int).SetString(wire.Value, 10)
	if !ok {
		return fmt.Errorf("field: decode element: invalid integer %q", wire.Value)
	}
	*e = New(wire.Name).NewElem(v)
	return nil
}

// Zero returns the additive identity of f.
func (f Field) Zero() Elem {
	return Elem{f, big.NewInt(0)}
}

// One returns the multiplicative identity of f.
func (f Field) One() Elem {
	return Elem{f, big.NewInt(1)}
}

// NewElem reduces v modulo the field's prime and returns the resulting
// element. Negative values are wrapped into [0, P).
func (f Field) NewElem(v *big.Int) Elem {
	value := new(big.Int).Mod(v, f.prime)
	return Elem{f, value}
}

// NewElemUint64 is a convenience wrapper around NewElem for small constants.
func (f Field) NewElemUint64(v uint64) Elem {
	return f.NewElem(new(big.Int).SetUint64(v))
}

// Random returns a uniformly random element of f.
func (f Field) Random() Elem {
	r, err := rand.Int(rand.Reader, f.prime)
	if err != nil {
		// crypto/rand.Int only errors if the reader misbehaves; the field's
		// prime is always positive so this path should never execute.
		panic(err)
	}
	return Elem{f, r}
}

// Field returns the Field this element belongs to.
func (e Elem) Field() Field { return e.field }

// Int returns a copy of the element's underlying integer representative.
func (e Elem) Int() *big.Int {
	return new(big.Int).Set(e.value)
}

// sameField reports whether a and b belong to fields with the same prime.
func sameField(a, b Field) bool {
	return a.prime.Cmp(b.prime) == 0
}

// IsZero reports whether e is the additive identity.
func (e Elem) IsZero() bool {
	return e.value.Sign() == 0
}

// Eq reports whether e and o represent the same value in the same field.
func (e Elem) Eq(o Elem) bool {
	return sameField(e.field, o.field) && e.value.Cmp(o.value) == 0
}

// Add returns e + o (mod P).
func (e Elem) Add(o Elem) Elem {
	if !sameField(e.field, o.field) {
		panic("field: cannot add elements from different fields")
	}
	v := new(big.Int).Add(e.value, o.value)
	v.Mod(v, e.field.prime)
	return Elem{e.field, v}
}

// Sub returns e - o (mod P).
func (e Elem) Sub(o Elem) Elem {
	if !sameField(e.field, o.field) {
		panic("field: cannot subtract elements from different fields")
	}
	v := new(big.Int).Sub(e.value, o.value)
	v.Mod(v, e.field.prime)
	return Elem{e.field, v}
}

// Neg returns -e (mod P).
func (e Elem) Neg() Elem {
	v := new(big.Int).Neg(e.value)
	v.Mod(v, e.field.prime)
	return Elem{e.field, v}
}

// Mul returns e * o (mod P).
func (e Elem) Mul(o Elem) Elem {
	if !sameField(e.field, o.field) {
		panic("field: cannot multiply elements from different fields")
	}
	v := new(big.Int).Mul(e.value, o.value)
	v.Mod(v, e.field.prime)
	return Elem{e.field, v}
}

// Inv returns the multiplicative inverse of e. It returns ErrDivisionByZero
// if e is zero, per the spec's ArithmeticError::NoInverse edge case.
func (e Elem) Inv() (Elem, error) {
	if e.IsZero() {
		return Elem{}, ErrDivisionByZero
	}
	v := new(big.Int).ModInverse(e.value, e.field.prime)
	return Elem{e.field, v}, nil
}

// Div returns e / o. It returns ErrDivisionByZero if o is zero.
func (e Elem) Div(o Elem) (Elem, error) {
	inv, err := o.Inv()
	if err != nil {
		return Elem{}, err
	}
	return e.Mul(inv), nil
}

// Pow returns e^k (mod P) for a non-negative exponent k.
func (e Elem) Pow(k uint64) Elem {
	v := new(big.Int).Exp(e.value, new(big.Int).SetUint64(k), e.field.prime)
	return Elem{e.field, v}
}

// Bits decomposes e into its l least-significant bits, 0-indexed from the
// least significant bit, each represented as a 0/1 field element. It is the
// building block the BIT-DECOMPOSITION protocol reveals operand bits
// against (the protocol itself operates on shares; this is the public,
// plaintext primitive it is checked against in tests).
func (e Elem) Bits(l int) []Elem {
	bits := make([]Elem, l)
	v := new(big.Int).Set(e.value)
	for i := 0; i < l; i++ {
		bit := new(big.Int).And(v, big.NewInt(1))
		bits[i] = Elem{e.field, bit}
		v.Rsh(v, 1)
	}
	return bits
}
