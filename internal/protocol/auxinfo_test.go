package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/sm"
)

var _ = Describe("AuxInfo", func() {
	It("derives identical combined material at every party", func() {
		f := field.New(field.Safe64Bits)
		indices := []uint64{1, 2, 3, 4, 5}
		threshold := uint64(2)

		outcomes := simulate(indices, func(self uint64) sm.Machine {
			parties := protocol.Parties{Self: self, Indices: indices, Threshold: threshold}
			return protocol.NewAuxInfo(parties, f)
		})

		var first [32]byte
		for i, idx := range indices {
			o := outcomes[idx]
			Expect(o).ToNot(BeNil())
			Expect(o.Succeeded).To(BeTrue())
			material, ok := o.Outputs["material"].([32]byte)
			Expect(ok).To(BeTrue())
			if i == 0 {
				first = material
			} else {
				Expect(material).To(Equal(first))
			}
		}
	})
})
