package orchestrator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/share"
)

// MaterialSource resolves one reserved preprocessing offset into the
// concrete correlated randomness a protocol constructor needs. Pool tracks
// only counters (generated/reserved/candidate_delete/deleted); MaterialSource
// is the seam that turns an offset those counters hand out into the actual
// share.Share values COMPARE, DIV, MOD2M and friends consume.
type MaterialSource interface {
	Compare(offset uint64) (protocol.ComparePreprocessing, error)
	Div(offset uint64) (protocol.DivPreprocessing, error)
	Equals(offset uint64) (protocol.EqualsPreprocessing, error)
	Mod2m(offset uint64, bits int) (protocol.Mod2mPreprocessing, error)
}

// PRSSSource derives every pool's material from a single cluster-wide seed
// known to every node (config.Cluster carries it the same way it already
// carries each node's private key), rather than storing generated shares
// anywhere. For a degree-T sharing, this node's share of the pseudorandom
// secret named by (element, offset, label) is the local evaluation, at this
// node's own index, of a degree-T polynomial whose coefficients are
// themselves derived from the seed by HMAC-SHA256 — every node derives
// coefficients identically and needs no message exchange to agree on them,
// the same trick the teacher's core/vss/shamir package uses to keep
// reconstruction a pure function of the shares already in hand.
//
// This is a simplified stand-in for full pseudo-random secret sharing
// (PRSS): real PRSS distributes distinct keys per qualified subset of
// parties so no single node (or external observer) can derive the secret
// alone; deriving every node's share from one shared seed means any party
// holding the seed can reconstruct the secret outright. Acceptable under
// spec.md's semi-honest, non-adversarial model (the same model under which
// config.Identity.PrivateKey is already a bare config value), but a real
// deployment would replace this with proper PRSS key distribution.
type PRSSSource struct {
	seed      []byte
	self      uint64
	threshold uint64
	f         field.Field
}

// NewPRSSSource constructs a PRSSSource for this node's peer index within a
// cluster sharing seed over field f at threshold T.
func NewPRSSSource(seed []byte, self, threshold uint64, f field.Field) *PRSSSource {
	return &PRSSSource{seed: seed, self: self, threshold: threshold, f: f}
}

// coefficient derives the polynomial coefficient at degree d for the
// pseudorandom secret named by (element, offset, label).
func (s *PRSSSource) coefficient(element preprocessing.Element, offset uint64, label string, d uint64) field.Elem {
	mac := hmac.New(sha256.New, s.seed)
	mac.Write([]byte(element))
	var offsetBuf [8]byte
	binary.BigEndian.PutUint64(offsetBuf[:], offset)
	mac.Write(offsetBuf[:])
	mac.Write([]byte(label))
	var degreeBuf [8]byte
	binary.BigEndian.PutUint64(degreeBuf[:], d)
	mac.Write(degreeBuf[:])
	sum := mac.Sum(nil)
	return s.f.NewElem(new(big.Int).SetBytes(sum))
}

// eval returns this node's share of the pseudorandom secret named by
// (element, offset, label): c_0 + c_1*x + ... + c_T*x^T, evaluated at
// x = self.
func (s *PRSSSource) eval(element preprocessing.Element, offset uint64, label string) share.Share {
	x := s.f.NewElemUint64(s.self)
	acc := s.f.Zero()
	for d := uint64(0); d <= s.threshold; d++ {
		term := s.coefficient(element, offset, label, d).Mul(x.Pow(d))
		acc = acc.Add(term)
	}
	return share.Share{Index: s.self, Value: acc}
}

// evalBit is eval restricted to {0,1}: a separate seed-derived selector
// decides which of the two bit values the secret is. Concretely, every
// node derives the same public bit deterministically from the seed (no
// secret needed for a value every node must already agree is public), then
// shares that fixed bit as a degree-T secret the same way eval shares a
// full field element.
func (s *PRSSSource) evalBit(element preprocessing.Element, offset uint64, label string) share.Share {
	mac := hmac.New(sha256.New, s.seed)
	mac.Write([]byte(element))
	var offsetBuf [8]byte
	binary.BigEndian.PutUint64(offsetBuf[:], offset)
	mac.Write(offsetBuf[:])
	mac.Write([]byte(label))
	mac.Write([]byte("bit-selector"))
	bit := mac.Sum(nil)[0] & 1

	if bit == 0 {
		// Every node's share of the all-zero secret is the all-zero
		// share: the zero polynomial evaluates to zero at every index.
		return share.Share{Index: s.self, Value: s.f.Zero()}
	}
	// Every node must hold a share of the *same* public constant 1, so
	// rather than an arbitrary field secret, each node locally builds a
	// degree-T sharing of the constant polynomial 1 — c_0 fixed to 1,
	// with c_1..c_T still seed-derived so distinct offsets/labels don't
	// collide on the all-ones share.
	x := s.f.NewElemUint64(s.self)
	acc := s.f.One()
	for d := uint64(1); d <= s.threshold; d++ {
		term := s.coefficient(element, offset, label, d).Mul(x.Pow(d))
		acc = acc.Add(term)
	}
	return share.Share{Index: s.self, Value: acc}
}

// rangeBitsDefault is the bound spec.md's worked examples assume for
// COMPARE/DIV masking: comfortably smaller than any supported field's bit
// length so a-b+R never wraps the modulus.
const rangeBitsDefault = 48

// Compare implements MaterialSource.
func (s *PRSSSource) Compare(offset uint64) (protocol.ComparePreprocessing, error) {
	return protocol.ComparePreprocessing{
		R:         s.eval(preprocessing.ElementCompare, offset, "R"),
		RMSB:      s.evalBit(preprocessing.ElementCompare, offset, "RMSB"),
		RangeBits: rangeBitsDefault,
	}, nil
}

// Div implements MaterialSource.
func (s *PRSSSource) Div(offset uint64) (protocol.DivPreprocessing, error) {
	cmp, err := s.Compare(offset)
	if err != nil {
		return protocol.DivPreprocessing{}, err
	}
	return protocol.DivPreprocessing{
		Rq:          s.eval(preprocessing.ElementDivisionIntegerSecret, offset, "Rq"),
		Rr:          s.eval(preprocessing.ElementDivisionIntegerSecret, offset, "Rr"),
		ComparePrep: cmp,
	}, nil
}

// Equals implements MaterialSource.
func (s *PRSSSource) Equals(offset uint64) (protocol.EqualsPreprocessing, error) {
	return protocol.EqualsPreprocessing{
		Rho: s.eval(preprocessing.ElementEqualsIntegerSecret, offset, "Rho"),
	}, nil
}

// Mod2m implements MaterialSource.
func (s *PRSSSource) Mod2m(offset uint64, bits int) (protocol.Mod2mPreprocessing, error) {
	if bits <= 0 {
		return protocol.Mod2mPreprocessing{}, fmt.Errorf("orchestrator: mod2m requires bits > 0, got %d", bits)
	}
	rbits := make([]share.Share, bits)
	for i := 0; i < bits; i++ {
		rbits[i] = s.evalBit(preprocessing.ElementModulo, offset, fmt.Sprintf("Rbit%d", i))
	}
	return protocol.Mod2mPreprocessing{
		R:     s.eval(preprocessing.ElementModulo, offset, "R"),
		RBits: rbits,
	}, nil
}
