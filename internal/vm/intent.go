package vm

import (
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/share"
)

// Intent describes one effectful (protocol-library) step a Process wants
// performed, and the channel its result will be delivered on once the
// orchestrator's Launcher resolves it — generalizing the teacher's
// process.IntentToGenerateRn / IntentToMultiply / IntentToOpen to the full
// protocol library, one concrete type per protocol kind.
type Intent interface {
	IsIntent()
	Kind() protocol.Kind
}

// IntentToReveal asks the orchestrator to run REVEAL on a share and
// deliver the reconstructed public value.
type IntentToReveal struct {
	Share share.Share
	Ret   chan field.Elem
}

func (IntentToReveal) IsIntent()          {}
func (IntentToReveal) Kind() protocol.Kind { return protocol.KindReveal }

// IntentToMult asks for a share of x*y.
type IntentToMult struct {
	X, Y share.Share
	Ret  chan share.Share
}

func (IntentToMult) IsIntent()          {}
func (IntentToMult) Kind() protocol.Kind { return protocol.KindMult }

// IntentToRan asks for a share of a fresh joint random value.
type IntentToRan struct {
	Ret chan share.Share
}

func (IntentToRan) IsIntent()          {}
func (IntentToRan) Kind() protocol.Kind { return protocol.KindRan }

// IntentToRanBit asks for a share of a fresh joint random bit.
type IntentToRanBit struct {
	Ret chan share.Share
}

func (IntentToRanBit) IsIntent()          {}
func (IntentToRanBit) Kind() protocol.Kind { return protocol.KindRanBit }

// IntentToRandomBitwise asks for l shares of fresh joint random bits.
type IntentToRandomBitwise struct {
	L   int
	Ret chan []share.Share
}

func (IntentToRandomBitwise) IsIntent()          {}
func (IntentToRandomBitwise) Kind() protocol.Kind { return protocol.KindRandomBitwise }

// IntentToInvRan asks for a share of a fresh random value r and its
// inverse r^-1.
type IntentToInvRan struct {
	Ret chan [2]share.Share // [0]=r, [1]=r^-1
}

func (IntentToInvRan) IsIntent()          {}
func (IntentToInvRan) Kind() protocol.Kind { return protocol.KindInvRan }

// IntentToCompare asks whether a <= b, delivering a shared bit.
type IntentToCompare struct {
	A, B share.Share
	Ret  chan share.Share
}

func (IntentToCompare) IsIntent()          {}
func (IntentToCompare) Kind() protocol.Kind { return protocol.KindCompare }

// IntentToMod2m asks for a share of a mod 2^m.
type IntentToMod2m struct {
	A share.Share
	M int
	Ret chan share.Share
}

func (IntentToMod2m) IsIntent()          {}
func (IntentToMod2m) Kind() protocol.Kind { return protocol.KindMod2m }

// IntentToModulo asks for a share of a mod m, m a power of two.
type IntentToModulo struct {
	A share.Share
	M uint64
	Ret chan share.Share
}

func (IntentToModulo) IsIntent()          {}
func (IntentToModulo) Kind() protocol.Kind { return protocol.KindModulo }

// IntentToTrunc asks for a share of a right-shifted by m bits.
type IntentToTrunc struct {
	A share.Share
	M int
	Ret chan share.Share
}

func (IntentToTrunc) IsIntent()          {}
func (IntentToTrunc) Kind() protocol.Kind { return protocol.KindTrunc }

// IntentToTruncPr asks for a share of a right-shifted by m bits with
// round-half-up correction.
type IntentToTruncPr struct {
	A share.Share
	M int
	Ret chan share.Share
}

func (IntentToTruncPr) IsIntent()          {}
func (IntentToTruncPr) Kind() protocol.Kind { return protocol.KindTruncPr }

// IntentToDiv asks for a share of floor(a/d) for a public divisor d.
type IntentToDiv struct {
	A share.Share
	D uint64
	Ret chan share.Share
}

func (IntentToDiv) IsIntent()          {}
func (IntentToDiv) Kind() protocol.Kind { return protocol.KindDiv }

// IntentToEquals asks whether a == b, revealing the (public) answer.
type IntentToEquals struct {
	A, B share.Share
	Ret  chan bool
}

func (IntentToEquals) IsIntent()          {}
func (IntentToEquals) Kind() protocol.Kind { return protocol.KindEquals }

// IntentToEqualsIntegerSecret asks whether a == b, keeping the answer
// shared rather than revealed (see protocol.EqualsIntegerSecret for the
// documented one-bit leakage this still costs).
type IntentToEqualsIntegerSecret struct {
	A, B share.Share
	Ret  chan share.Share
}

func (IntentToEqualsIntegerSecret) IsIntent() {}
func (IntentToEqualsIntegerSecret) Kind() protocol.Kind {
	return protocol.KindEqualsIntegerSecret
}

// IntentToIfElse asks for a share of (bit ? x : y).
type IntentToIfElse struct {
	Bit, X, Y share.Share
	Ret       chan share.Share
}

func (IntentToIfElse) IsIntent()          {}
func (IntentToIfElse) Kind() protocol.Kind { return protocol.KindIfElse }

// IntentToBitDecompose asks for the l shared bits of a.
type IntentToBitDecompose struct {
	A share.Share
	L int
	Ret chan []share.Share
}

func (IntentToBitDecompose) IsIntent()          {}
func (IntentToBitDecompose) Kind() protocol.Kind { return protocol.KindBitDecomposition }

// IntentToDKG asks the cluster to jointly generate a threshold-ECDSA key
// pair, delivering a share of the private key and the public key.
type IntentToDKG struct {
	Ret chan DKGResult
}

// DKGResult is the outcome of a completed DKG intent.
type DKGResult struct {
	PrivateKeyShare share.Share
	PublicKeyX      field.Elem
	PublicKeyY      field.Elem
}

func (IntentToDKG) IsIntent()          {}
func (IntentToDKG) Kind() protocol.Kind { return protocol.KindDKG }

// IntentToSign asks the cluster to jointly sign digest z under the shared
// private key x.
type IntentToSign struct {
	X      share.Share
	Digest []byte
	Ret    chan SignResult
}

// SignResult is a completed ECDSA signature (r, s), s already normalized
// to its canonical low-S form.
type SignResult struct {
	R, S field.Elem
}

func (IntentToSign) IsIntent()          {}
func (IntentToSign) Kind() protocol.Kind { return protocol.KindSign }

// IntentToError reports a process-local failure (e.g. a malformed
// instruction or a type mismatch) with no protocol to run, mirroring the
// teacher's process.IntentToError.
type IntentToError struct {
	Err error
}

func (IntentToError) IsIntent()          {}
func (IntentToError) Kind() protocol.Kind { return protocol.Kind(-1) }
