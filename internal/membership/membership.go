// Package membership is the static, fixed cluster membership every node
// holds for its process lifetime: the set of N cooperating nodes, the
// designated leader, the polynomial degree T, the kappa security
// parameter, and the prime field. Dynamic membership change is an explicit
// Non-goal; this package has no Add/Remove operation by design.
//
// No teacher equivalent exists: republicprotocol/tau wires its test
// cluster's peer addresses directly into each test rather than through a
// shared membership type. Grounded directly on spec.md §2/§4.1.
package membership

import (
	"fmt"

	"github.com/nilvm/node/internal/config"
	"github.com/nilvm/node/internal/field"
)

// NodeID identifies one cluster member by its configured node_id.
type NodeID string

// Member is one cooperating node's identity within the cluster.
type Member struct {
	NodeID    NodeID
	PublicKey string
	Endpoint  string
}

// Cluster is the fixed set of parameters every node in a nilVM deployment
// must agree on to interoperate. It is immutable after construction.
type Cluster struct {
	members          []Member
	byID             map[NodeID]Member
	leader           NodeID
	field            field.Field
	polynomialDegree int
	kappa            int
}

// FromConfig builds a Cluster from a loaded config.Cluster section,
// validating that the leader is a declared member and the polynomial
// degree leaves an honest majority (N > 2T, the semi-honest-peers
// threshold spec.md assumes).
func FromConfig(cfg config.Cluster) (Cluster, error) {
	if len(cfg.Members) == 0 {
		return Cluster{}, fmt.Errorf("membership: cluster has no members")
	}

	members := make([]Member, 0, len(cfg.Members))
	byID := make(map[NodeID]Member, len(cfg.Members))
	for _, m := range cfg.Members {
		member := Member{NodeID: NodeID(m.NodeID), PublicKey: m.PublicKey, Endpoint: m.Endpoint}
		members = append(members, member)
		byID[member.NodeID] = member
	}

	leader := NodeID(cfg.Leader)
	if _, ok := byID[leader]; !ok {
		return Cluster{}, fmt.Errorf("membership: leader %q is not a declared member", cfg.Leader)
	}

	if cfg.PolynomialDegree < 0 {
		return Cluster{}, fmt.Errorf("membership: polynomial_degree must be non-negative")
	}
	if n := len(members); n <= 2*cfg.PolynomialDegree {
		return Cluster{}, fmt.Errorf("membership: cluster size %d does not exceed 2*polynomial_degree %d", n, 2*cfg.PolynomialDegree)
	}

	f := field.New(field.Name(cfg.Prime))

	return Cluster{
		members:          members,
		byID:             byID,
		leader:           leader,
		field:            f,
		polynomialDegree: cfg.PolynomialDegree,
		kappa:            cfg.Kappa,
	}, nil
}

// Members returns every cluster member, in configured order.
func (c Cluster) Members() []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

// Size returns N, the number of cluster members.
func (c Cluster) Size() int { return len(c.members) }

// Lookup returns the Member for id, if it is a declared cluster member.
func (c Cluster) Lookup(id NodeID) (Member, bool) {
	m, ok := c.byID[id]
	return m, ok
}

// PeerID returns id's 1-based position in the cluster's configured member
// order — the same numbering share.Share.Index uses, so a node's gRPC peer
// id doubles as its Shamir share index.
func (c Cluster) PeerID(id NodeID) (uint64, bool) {
	for i, m := range c.members {
		if m.NodeID == id {
			return uint64(i + 1), true
		}
	}
	return 0, false
}

// MemberAt returns the Member whose PeerID is peer.
func (c Cluster) MemberAt(peer uint64) (Member, bool) {
	if peer < 1 || peer > uint64(len(c.members)) {
		return Member{}, false
	}
	return c.members[peer-1], true
}

// Leader returns the statically configured leader's NodeID. Leader
// failover is out of scope (spec.md §4.5) — this never changes after
// construction.
func (c Cluster) Leader() NodeID { return c.leader }

// IsLeader reports whether id is the cluster's configured leader.
func (c Cluster) IsLeader(id NodeID) bool { return id == c.leader }

// PolynomialDegree returns T, the Shamir sharing threshold.
func (c Cluster) PolynomialDegree() int { return c.polynomialDegree }

// Kappa returns the cluster's security parameter.
func (c Cluster) Kappa() int { return c.kappa }

// Field returns the prime field shares are defined over.
func (c Cluster) Field() field.Field { return c.field }
