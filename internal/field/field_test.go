package field_test

import (
	"math/big"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/field"
)

var _ = Describe("Field arithmetic", func() {

	names := []TableEntry{
		Entry("Safe64Bits", field.Safe64Bits),
		Entry("Safe128Bits", field.Safe128Bits),
		Entry("Safe256Bits", field.Safe256Bits),
	}

	DescribeTable("x + (-x) = 0", func(name field.Name) {
		f := field.New(name)
		x := f.Random()
		Expect(x.Add(x.Neg()).IsZero()).To(BeTrue())
	}, names...)

	DescribeTable("x * inv(x) = 1 when x != 0", func(name field.Name) {
		f := field.New(name)
		x := f.NewElemUint64(42)
		inv, err := x.Inv()
		Expect(err).ToNot(HaveOccurred())
		Expect(x.Mul(inv).Eq(f.One())).To(BeTrue())
	}, names...)

	DescribeTable("inverting zero is an error", func(name field.Name) {
		f := field.New(name)
		_, err := f.Zero().Inv()
		Expect(err).To(MatchError(field.ErrDivisionByZero))
	}, names...)

	It("reduces out-of-range integers into [0, p)", func() {
		f := field.New(field.Safe256Bits)
		tooBig := new(big.Int).Add(f.Prime(), big.NewInt(5))
		e := f.NewElem(tooBig)
		Expect(e.Eq(f.NewElemUint64(5))).To(BeTrue())
	})

	It("wraps negative integers", func() {
		f := field.New(field.Safe256Bits)
		e := f.NewElem(big.NewInt(-1))
		Expect(e.Add(f.One()).IsZero()).To(BeTrue())
	})

	It("decomposes an element into its bits", func() {
		f := field.New(field.Safe256Bits)
		e := f.NewElemUint64(0b1011)
		bits := e.Bits(4)
		Expect(bits[0].Eq(f.NewElemUint64(1))).To(BeTrue())
		Expect(bits[1].Eq(f.NewElemUint64(1))).To(BeTrue())
		Expect(bits[2].Eq(f.NewElemUint64(0))).To(BeTrue())
		Expect(bits[3].Eq(f.NewElemUint64(1))).To(BeTrue())
	})
})
