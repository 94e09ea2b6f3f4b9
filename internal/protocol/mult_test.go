package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

var _ = Describe("Mult", func() {
	It("computes a share of the product of two secrets", func() {
		f := field.New(field.Safe64Bits)
		a := f.NewElemUint64(7)
		b := f.NewElemUint64(6)
		indices := []uint64{1, 2, 3, 4, 5}
		threshold := uint64(2)

		aShares, err := share.Split(f, a, threshold, indices)
		Expect(err).ToNot(HaveOccurred())
		bShares, err := share.Split(f, b, threshold, indices)
		Expect(err).ToNot(HaveOccurred())

		machines := map[uint64]*protocol.Mult{}
		outcomes := simulate(indices, func(self uint64) sm.Machine {
			parties := protocol.Parties{Self: self, Indices: indices, Threshold: threshold}
			m := protocol.NewMult(parties, aShares.For(self), bShares.For(self))
			machines[self] = m
			return m
		})

		var productShares share.Shares
		for _, idx := range indices {
			o := outcomes[idx]
			Expect(o).ToNot(BeNil())
			Expect(o.Succeeded).To(BeTrue())
			productShares = append(productShares, machines[idx].Result())
		}

		reconstructed, err := share.Reconstruct(productShares, threshold)
		Expect(err).ToNot(HaveOccurred())
		Expect(reconstructed.Eq(f.NewElemUint64(42))).To(BeTrue())
	})
})
