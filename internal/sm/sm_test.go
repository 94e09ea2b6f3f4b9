package sm_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/nilvm/node/internal/sm"
)

// countingMachine waits to see one message from each of two peers in round
// 0, then terminates with the count of messages received as its output.
// It exercises the Runtime's round gating without depending on any
// concrete protocol.
type countingMachine struct {
	state    sm.StateTag
	expected int
	seen     int
}

func newCountingMachine(expected int) *countingMachine {
	return &countingMachine{state: "waiting", expected: expected}
}

func (m *countingMachine) Step(inbound *sm.InboundMessage) sm.StepResult {
	if inbound == nil {
		return sm.WaitForMoreMessages()
	}
	m.seen++
	if m.seen < m.expected {
		return sm.WaitForMoreMessages()
	}
	m.state = "done"
	return sm.Terminated(map[string]interface{}{"count": m.seen})
}

func (m *countingMachine) CurrentState() sm.StateTag {
	return m.state
}

var _ = Describe("Runtime", func() {
	It("terminates once every participant's round-0 message has arrived", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(2))

		_, err := rt.Deliver(&sm.InboundMessage{From: 1, Round: 0})
		Expect(err).ToNot(HaveOccurred())
		Expect(rt.Outcome()).To(BeNil())

		_, err = rt.Deliver(&sm.InboundMessage{From: 2, Round: 0})
		Expect(err).ToNot(HaveOccurred())

		outcome := rt.Outcome()
		Expect(outcome).ToNot(BeNil())
		Expect(outcome.Succeeded).To(BeTrue())
		Expect(outcome.Outputs["count"]).To(Equal(2))
	})

	It("queues messages destined for a future round instead of dropping them", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(2))

		// A message for round 1 arrives before round 0 has completed.
		_, err := rt.Deliver(&sm.InboundMessage{From: 1, Round: 1})
		Expect(err).ToNot(HaveOccurred())
		Expect(rt.Outcome()).To(BeNil())

		// Completing round 0 does not consume the queued round-1 message,
		// because this machine never transitions out of round 0 and instead
		// terminates directly.
		_, err = rt.Deliver(&sm.InboundMessage{From: 1, Round: 0})
		Expect(err).ToNot(HaveOccurred())
		_, err = rt.Deliver(&sm.InboundMessage{From: 2, Round: 0})
		Expect(err).ToNot(HaveOccurred())
		Expect(rt.Outcome().Succeeded).To(BeTrue())
	})

	It("fails with ProtocolViolation on a duplicate message from an already-seen peer", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(2))

		_, err := rt.Deliver(&sm.InboundMessage{From: 1, Round: 0})
		Expect(err).ToNot(HaveOccurred())

		_, err = rt.Deliver(&sm.InboundMessage{From: 1, Round: 0})
		Expect(err).ToNot(HaveOccurred())

		outcome := rt.Outcome()
		Expect(outcome).ToNot(BeNil())
		Expect(outcome.Succeeded).To(BeFalse())
		Expect(outcome.Failure).To(Equal(sm.FailureProtocolViolation))
	})

	It("rejects further delivery once terminated", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(1))

		_, err := rt.Deliver(&sm.InboundMessage{From: 1, Round: 0})
		Expect(err).ToNot(HaveOccurred())
		Expect(rt.Outcome().Succeeded).To(BeTrue())

		_, err = rt.Deliver(&sm.InboundMessage{From: 2, Round: 0})
		Expect(err).To(MatchError(sm.ErrTerminal))
	})

	It("transitions to a Canceled-equivalent terminal state without emitting messages", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(2))
		rt.Cancel()

		outcome := rt.Outcome()
		Expect(outcome).ToNot(BeNil())
		Expect(outcome.Succeeded).To(BeFalse())
		Expect(outcome.Failure).To(Equal(sm.FailureKind("Canceled")))
	})

	It("surfaces a PeerDisconnected failure reported by the transport", func() {
		rt := sm.NewRuntime([]sm.PeerID{1, 2}, newCountingMachine(2))
		rt.Fail(sm.FailurePeerDisconnected, nil)

		outcome := rt.Outcome()
		Expect(outcome.Failure).To(Equal(sm.FailurePeerDisconnected))
	})
})
