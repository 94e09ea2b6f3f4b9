package preprocessing_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/preprocessing"
)

var _ = Describe("Pool", func() {
	It("reserves from generated material and reports exhaustion past that", func() {
		p := preprocessing.NewPool()
		p.BeginBatch(0)
		p.CommitBatch(0, 10)

		r, err := p.Reserve(6)
		Expect(err).ToNot(HaveOccurred())
		Expect(r).To(Equal(preprocessing.Range{Start: 0, End: 6}))

		_, err = p.Reserve(5)
		Expect(err).To(MatchError(preprocessing.ErrExhausted))

		r2, err := p.Reserve(4)
		Expect(err).ToNot(HaveOccurred())
		Expect(r2).To(Equal(preprocessing.Range{Start: 6, End: 10}))
	})

	It("never returns consumed material to the pool on success or failure", func() {
		p := preprocessing.NewPool()
		p.BeginBatch(0)
		p.CommitBatch(0, 4)

		r, err := p.Reserve(4)
		Expect(err).ToNot(HaveOccurred())
		p.MarkConsumed(r)
		p.Compact()

		snap := p.Snapshot()
		Expect(snap.Generated).To(Equal(uint64(4)))
		Expect(snap.Reserved).To(Equal(uint64(4)))
		Expect(snap.CandidateDelete).To(Equal(uint64(4)))
		Expect(snap.Deleted).To(Equal(uint64(4)))

		_, err = p.Reserve(1)
		Expect(err).To(MatchError(preprocessing.ErrExhausted))
	})

	It("tracks in-flight batches and honors the generation threshold/parallelism cap", func() {
		p := preprocessing.NewPool()
		Expect(p.NeedsGeneration(10, 2)).To(BeTrue())

		p.BeginBatch(0)
		Expect(p.NeedsGeneration(10, 1)).To(BeFalse(), "at the parallelism cap")
		Expect(p.NeedsGeneration(10, 2)).To(BeTrue())

		p.CommitBatch(0, 10)
		Expect(p.NeedsGeneration(10, 2)).To(BeFalse(), "enough generated material now")
	})

	It("aborting a batch does not advance generated", func() {
		p := preprocessing.NewPool()
		p.BeginBatch(7)
		p.AbortBatch(7)
		Expect(p.Snapshot().Generated).To(Equal(uint64(0)))
		Expect(p.Snapshot().InFlightBatches).To(Equal(0))
	})

	It("computes the next batch id from generated/batchSize", func() {
		p := preprocessing.NewPool()
		p.BeginBatch(0)
		p.CommitBatch(0, 100)
		Expect(p.NextBatchID(100)).To(Equal(uint64(1)))
	})
})
