package protocol_test

import (
	"github.com/nilvm/node/internal/sm"
)

// routedMessage is one message in flight during a simulated run, addressed
// to a specific party's Runtime.
type routedMessage struct {
	to  uint64
	msg *sm.InboundMessage
}

// simulate drives one Runtime per party to termination, wiring each
// Runtime's outbound messages directly into its destination's inbound
// queue. It mirrors the message-fabric's job closely enough to exercise
// every protocol's full message flow without bringing up a real
// transport.
func simulate(indices []uint64, newMachine func(self uint64) sm.Machine) map[uint64]*sm.Outcome {
	runtimes := map[uint64]*sm.Runtime{}
	peers := make([]sm.PeerID, len(indices))
	for i, idx := range indices {
		peers[i] = sm.PeerID(idx)
	}
	for _, idx := range indices {
		runtimes[idx] = sm.NewRuntime(peers, newMachine(idx))
	}

	var queue []routedMessage
	for _, idx := range indices {
		out, err := runtimes[idx].Deliver(nil)
		if err != nil {
			panic(err)
		}
		for _, o := range out {
			queue = append(queue, routedMessage{to: uint64(o.To), msg: &sm.InboundMessage{From: sm.PeerID(idx), Round: 0, Payload: o.Payload}})
		}
	}

	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		rt := runtimes[m.to]
		if rt.Outcome() != nil {
			continue
		}
		out, err := rt.Deliver(m.msg)
		if err != nil {
			panic(err)
		}
		for _, o := range out {
			queue = append(queue, routedMessage{to: uint64(o.To), msg: &sm.InboundMessage{From: sm.PeerID(m.to), Round: 0, Payload: o.Payload}})
		}
	}

	outcomes := map[uint64]*sm.Outcome{}
	for _, idx := range indices {
		outcomes[idx] = runtimes[idx].Outcome()
	}
	return outcomes
}
