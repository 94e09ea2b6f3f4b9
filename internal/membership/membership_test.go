package membership_test

import (
	"testing"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/membership"
)

func threeNodeConfig() config.Cluster {
	return config.Cluster{
		Members: []config.Member{
			{NodeID: "a", PublicKey: "aa", Endpoint: "localhost:1"},
			{NodeID: "b", PublicKey: "bb", Endpoint: "localhost:2"},
			{NodeID: "c", PublicKey: "cc", Endpoint: "localhost:3"},
		},
		Leader:           "a",
		Prime:            "safe_256_bits",
		PolynomialDegree: 1,
		Kappa:            40,
	}
}

func TestFromConfigBuildsCluster(t *testing.T) {
	c, err := membership.FromConfig(threeNodeConfig())
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	if c.Size() != 3 {
		t.Fatalf("expected size 3, got %d", c.Size())
	}
	if !c.IsLeader("a") {
		t.Fatal("expected a to be leader")
	}
	if c.PolynomialDegree() != 1 {
		t.Fatalf("unexpected polynomial degree: %d", c.PolynomialDegree())
	}
	if _, ok := c.Lookup("b"); !ok {
		t.Fatal("expected b to be a member")
	}
	if _, ok := c.Lookup("z"); ok {
		t.Fatal("did not expect z to be a member")
	}
}

func TestFromConfigRejectsUnknownLeader(t *testing.T) {
	cfg := threeNodeConfig()
	cfg.Leader = "nonexistent"
	if _, err := membership.FromConfig(cfg); err == nil {
		t.Fatal("expected error for leader not in membership list")
	}
}

func TestFromConfigRejectsInsufficientMembersForThreshold(t *testing.T) {
	cfg := threeNodeConfig()
	cfg.PolynomialDegree = 2 // N=3 does not exceed 2*T=4
	if _, err := membership.FromConfig(cfg); err == nil {
		t.Fatal("expected error for N <= 2T")
	}
}

func TestPeerIDRoundTrip(t *testing.T) {
	c, err := membership.FromConfig(threeNodeConfig())
	if err != nil {
		t.Fatalf("FromConfig returned error: %v", err)
	}
	id, ok := c.PeerID("b")
	if !ok {
		t.Fatal("expected b to have a peer id")
	}
	m, ok := c.MemberAt(id)
	if !ok || m.NodeID != "b" {
		t.Fatalf("expected MemberAt(%d) to return b, got %+v, %v", id, m, ok)
	}
}

func TestFromConfigRejectsEmptyMembership(t *testing.T) {
	if _, err := membership.FromConfig(config.Cluster{}); err == nil {
		t.Fatal("expected error for empty membership")
	}
}
