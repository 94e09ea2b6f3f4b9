package share_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
)

var _ = Describe("Shamir secret sharing", func() {
	const Trials = 20

	f := field.New(field.Safe256Bits)

	indicesFor := func(n uint64) []uint64 {
		idx := make([]uint64, n)
		for i := range idx {
			idx[i] = uint64(i) + 1
		}
		return idx
	}

	Context("reveal-correctness", func() {
		It("reconstructs the original secret from any threshold+1 shares", func() {
			for trial := 0; trial < Trials; trial++ {
				n, t := uint64(10), uint64(4)
				secret := f.Random()
				shares, err := share.Split(f, secret, t, indicesFor(n))
				Expect(err).ToNot(HaveOccurred())

				perm := rand.Perm(int(n))
				subset := make(share.Shares, t+1)
				for i := range subset {
					subset[i] = shares[perm[i]]
				}

				got, err := share.Reconstruct(subset, t)
				Expect(err).ToNot(HaveOccurred())
				Expect(got.Eq(secret)).To(BeTrue())
			}
		})

		It("is independent of which threshold+1 shares are used", func() {
			n, t := uint64(7), uint64(2)
			secret := f.Random()
			shares, err := share.Split(f, secret, t, indicesFor(n))
			Expect(err).ToNot(HaveOccurred())

			a, err := share.Reconstruct(shares[0:t+1], t)
			Expect(err).ToNot(HaveOccurred())
			b, err := share.Reconstruct(shares[n-t-1:], t)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Eq(b)).To(BeTrue())
		})

		It("errors with fewer than threshold+1 shares", func() {
			n, t := uint64(5), uint64(3)
			secret := f.Random()
			shares, err := share.Split(f, secret, t, indicesFor(n))
			Expect(err).ToNot(HaveOccurred())

			_, err = share.Reconstruct(shares[:t], t)
			Expect(err).To(MatchError(share.ErrInsufficientShares))
		})
	})

	Context("additive homomorphism", func() {
		It("reveal(share(a) + share(b)) = a + b", func() {
			n, t := uint64(6), uint64(2)
			a, b := f.Random(), f.Random()
			sharesA, err := share.Split(f, a, t, indicesFor(n))
			Expect(err).ToNot(HaveOccurred())
			sharesB, err := share.Split(f, b, t, indicesFor(n))
			Expect(err).ToNot(HaveOccurred())

			sum := make(share.Shares, n)
			for i := range sum {
				sum[i], err = sharesA[i].Add(sharesB[i])
				Expect(err).ToNot(HaveOccurred())
			}

			got, err := share.Reconstruct(sum[:t+1], t)
			Expect(err).ToNot(HaveOccurred())
			Expect(got.Eq(a.Add(b))).To(BeTrue())
		})
	})

	It("rejects index zero, which is reserved for the secret", func() {
		_, err := share.Split(f, f.Random(), 1, []uint64{0, 1})
		Expect(err).To(HaveOccurred())
	})
})
