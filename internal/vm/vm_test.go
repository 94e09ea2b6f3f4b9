package vm_test

import (
	"context"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/share"
	. "github.com/nilvm/node/internal/vm"
)

// stubLauncher resolves intents locally instead of running real protocol
// instances, standing in for internal/orchestrator in these tests — the
// protocols themselves are exercised against a real Runtime in
// internal/protocol's own test suite.
type stubLauncher struct{}

func (stubLauncher) Launch(ctx context.Context, proc ID, intent Intent) error {
	switch in := intent.(type) {
	case IntentToReveal:
		in.Ret <- in.Share.Value
	case IntentToMult:
		in.Ret <- share.Share{Index: in.X.Index, Value: in.X.Value.Mul(in.Y.Value)}
	}
	return nil
}

var _ = Describe("VM", func() {
	It("evaluates a straight-line program mixing public and private values", func() {
		f := field.New(field.Safe64Bits)

		const (
			addrA Addr = iota
			addrB
			addrC
			addrSum
			addrProduct
			addrResult
		)

		mem := Memory{
			addrA: Private{share.Share{Index: 1, Value: f.NewElemUint64(3)}},
			addrB: Private{share.Share{Index: 1, Value: f.NewElemUint64(4)}},
			addrC: Private{share.Share{Index: 1, Value: f.NewElemUint64(5)}},
		}

		code := Code{
			{Op: OpAdd, Dst: addrSum, Lhs: addrA, Rhs: addrB},
			{Op: OpMult, Dst: addrProduct, Lhs: addrSum, Rhs: addrC},
			{Op: OpReveal, Dst: addrResult, Lhs: addrProduct},
			{Op: OpExit, Operands: []Addr{addrResult}},
		}

		proc := NewProcess(ID{}, mem, code)
		machine := New(stubLauncher{}, logrus.NewEntry(logrus.New()))

		results, err := machine.Run(context.Background(), &proc)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(1))

		public, ok := results[0].(Public)
		Expect(ok).To(BeTrue())
		Expect(public.Elem.Eq(f.NewElemUint64(35))).To(BeTrue())
	})
})
