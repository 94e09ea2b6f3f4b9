package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
)

var _ = Describe("Reveal", func() {
	It("reconstructs the shared secret at every party", func() {
		f := field.New(field.Safe64Bits)
		secret := f.NewElemUint64(424242)
		indices := []uint64{1, 2, 3, 4, 5}
		threshold := uint64(2)

		shares, err := share.Split(f, secret, threshold, indices)
		Expect(err).ToNot(HaveOccurred())

		outcomes := simulate(indices, func(self uint64) sm.Machine {
			parties := protocol.Parties{Self: self, Indices: indices, Threshold: threshold}
			return protocol.NewReveal(parties, shares.For(self))
		})

		for _, idx := range indices {
			o := outcomes[idx]
			Expect(o).ToNot(BeNil())
			Expect(o.Succeeded).To(BeTrue())
			Expect(o.Outputs["value"].(field.Elem).Eq(secret)).To(BeTrue())
		}
	})
})
