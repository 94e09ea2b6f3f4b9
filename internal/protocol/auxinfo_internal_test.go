package protocol

import (
	"math/big"
	"testing"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/sm"
)

// TestAuxInfoDetectsForgedOpening exercises the commit-then-reveal guard
// directly, reaching into the unexported auxInfo payload types: a party
// that opens a secret different from what it committed to must fail the
// machine, not silently combine in.
func TestAuxInfoDetectsForgedOpening(t *testing.T) {
	f := field.New(field.Safe64Bits)
	indices := []uint64{1, 2}
	threshold := uint64(1)
	peers := []sm.PeerID{1, 2}

	victim := NewAuxInfo(Parties{Self: 1, Indices: indices, Threshold: threshold}, f)
	rt := sm.NewRuntime(peers, victim)

	if _, err := rt.Deliver(nil); err != nil {
		t.Fatalf("deliver nil: %v", err)
	}

	params := commitmentParamsFor(f)
	commitment := params.commit(big.NewInt(5), big.NewInt(7))
	if _, err := rt.Deliver(&sm.InboundMessage{From: 2, Payload: auxInfoCommitPayload{Commitment: commitment.Bytes()}}); err != nil {
		t.Fatalf("deliver commitment: %v", err)
	}
	if victim.state != "opening" {
		t.Fatalf("expected victim state 'opening', got %q", victim.state)
	}

	if _, err := rt.Deliver(&sm.InboundMessage{From: 2, Payload: auxInfoOpenPayload{
		Secret:     big.NewInt(9).Bytes(),
		Randomizer: big.NewInt(9).Bytes(),
	}}); err != nil {
		t.Fatalf("deliver forged opening: %v", err)
	}

	outcome := rt.Outcome()
	if outcome == nil {
		t.Fatal("expected a terminal outcome after a forged opening")
	}
	if outcome.Succeeded {
		t.Fatal("expected the forged opening to fail the machine")
	}
	if outcome.Failure != sm.FailureProtocolViolation {
		t.Fatalf("expected FailureProtocolViolation, got %v", outcome.Failure)
	}
}

func TestCommitmentParamsRoundTrip(t *testing.T) {
	f := field.New(field.Safe64Bits)
	params := commitmentParamsFor(f)

	s, r := big.NewInt(11), big.NewInt(13)
	c := params.commit(s, r)
	if !params.verify(s, r, c) {
		t.Fatal("expected commit/verify to round-trip for matching (s, r)")
	}
	if params.verify(big.NewInt(12), r, c) {
		t.Fatal("expected verify to reject a mismatched secret")
	}
}
