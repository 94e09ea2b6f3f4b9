// Launcher wires vm.VM's Launcher contract to the real protocol library and
// a real network: every vm.Intent becomes one protocol.Machine driven to
// termination over internal/fabric, with correlated randomness resolved
// on demand from a MaterialSource and offsets tracked per running process.
//
// No teacher equivalent exists as a single file: republicprotocol/tau's
// core/vm.VM drives its process's intents against in-process channels
// wired up by its own test harness, with no network hop and no
// preprocessing reservation in between. This generalizes that dispatch
// loop (one case per IntentTo* in core/vm/process.go) onto a network-
// driven sm.Runtime per protocol, the way internal/protocol/network_test.go's
// simulate helper drives one in-memory per test.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math/big"
	"sync"

	"github.com/nilvm/node/internal/errs"
	"github.com/nilvm/node/internal/fabric"
	"github.com/nilvm/node/internal/field"
	"github.com/nilvm/node/internal/membership"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/protocol"
	"github.com/nilvm/node/internal/share"
	"github.com/nilvm/node/internal/sm"
	"github.com/nilvm/node/internal/vm"
)

// RangeTracker is the optional extra a vm.Launcher may implement to learn
// which preprocessing.Range a process reserved for each element it may
// consume. vm.Launcher's fixed Launch signature carries no reservation
// info, so Orchestrator.run type-asserts for this interface rather than
// widening vm.Launcher itself — a stub launcher that doesn't implement it
// (as in vm's own tests) is simply not tracked.
type RangeTracker interface {
	Track(proc vm.ID, reserved map[preprocessing.Element]preprocessing.Range)
	Untrack(proc vm.ID)
}

// procState is one running process's per-element cursor into the ranges
// reserved for it, so repeated intents of the same kind consume distinct
// offsets rather than replaying the same preprocessing material. It also
// counts the intents proc has dispatched so far: every cooperating node
// runs the identical program against its own shares in the identical
// instruction order, so the nth Launch call for a given proc.ID is the same
// logical protocol instance on every node and can be addressed by a
// deterministic (proc, n) instance id instead of a node-local sequence
// number, which would not line up across nodes.
type procState struct {
	reserved map[preprocessing.Element]preprocessing.Range
	cursor   map[preprocessing.Element]uint64
	seq      uint64
}

// ProtocolLauncher implements vm.Launcher (and RangeTracker) by driving the
// appropriate internal/protocol machine to termination over a real
// internal/fabric.Fabric, resolving preprocessing material from a
// MaterialSource as each protocol needs it.
type ProtocolLauncher struct {
	cluster  membership.Cluster
	self     uint64
	fab      *fabric.Fabric
	material MaterialSource

	mu    sync.Mutex
	procs map[vm.ID]*procState
}

// NewProtocolLauncher constructs a ProtocolLauncher for the node identified
// by selfNodeID within cluster, sending and receiving protocol messages
// over fab and resolving correlated randomness from material.
func NewProtocolLauncher(cluster membership.Cluster, selfNodeID membership.NodeID, fab *fabric.Fabric, material MaterialSource) (*ProtocolLauncher, error) {
	self, ok := cluster.PeerID(selfNodeID)
	if !ok {
		return nil, fmt.Errorf("orchestrator: %q is not a member of the cluster", selfNodeID)
	}
	return &ProtocolLauncher{
		cluster:  cluster,
		self:     self,
		fab:      fab,
		material: material,
		procs:    map[vm.ID]*procState{},
	}, nil
}

// Track implements RangeTracker.
func (l *ProtocolLauncher) Track(proc vm.ID, reserved map[preprocessing.Element]preprocessing.Range) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.procs[proc] = &procState{reserved: reserved, cursor: map[preprocessing.Element]uint64{}}
}

// Untrack implements RangeTracker.
func (l *ProtocolLauncher) Untrack(proc vm.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.procs, proc)
}

// nextOffset reserves the next n preprocessing offsets of element for proc,
// erroring if proc has no such reservation or it is exhausted.
func (l *ProtocolLauncher) nextOffset(proc vm.ID, element preprocessing.Element, n uint64) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.procs[proc]
	if !ok {
		return 0, fmt.Errorf("orchestrator: process %x has no tracked preprocessing reservations", proc[:])
	}
	r, ok := st.reserved[element]
	if !ok {
		return 0, fmt.Errorf("orchestrator: process %x reserved no %q material", proc[:], element)
	}
	cur := st.cursor[element]
	if cur+n > r.Len() {
		return 0, preprocessing.ErrExhausted
	}
	offset := r.Start + cur
	st.cursor[element] = cur + n
	return offset, nil
}

// parties builds the full-cluster Parties set this node participates in.
func (l *ProtocolLauncher) parties() protocol.Parties {
	members := l.cluster.Members()
	indices := make([]uint64, len(members))
	for i := range members {
		indices[i] = uint64(i + 1)
	}
	return protocol.Parties{Self: l.self, Indices: indices, Threshold: uint64(l.cluster.PolynomialDegree())}
}

// nextInstanceID mints a fabric instance id for proc's next protocol
// invocation: deterministic in (proc, call count) rather than node-local, so
// every cooperating node derives the identical id for the matching protocol
// instance without exchanging one over the wire first.
func (l *ProtocolLauncher) nextInstanceID(proc vm.ID) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.procs[proc]
	if !ok {
		return "", fmt.Errorf("orchestrator: process %x has no tracked preprocessing reservations", proc[:])
	}
	st.seq++
	return fmt.Sprintf("%x-%d", proc[:], st.seq), nil
}

// Launch implements vm.Launcher: it dispatches intent to the matching
// protocol.Machine, drives it to termination, and delivers the typed
// result onto the intent's own Ret channel before returning.
func (l *ProtocolLauncher) Launch(ctx context.Context, proc vm.ID, intent vm.Intent) error {
	f := l.cluster.Field()
	parties := l.parties()
	instanceID, err := l.nextInstanceID(proc)
	if err != nil {
		return err
	}

	switch in := intent.(type) {
	case vm.IntentToReveal:
		m := protocol.NewReveal(parties, in.Share)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToMult:
		m := protocol.NewMult(parties, in.X, in.Y)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToRan:
		m := protocol.NewRan(parties, f)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToRanBit:
		m := protocol.NewRanBit(parties, f)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToRandomBitwise:
		m := protocol.NewRandomBitwise(parties, f, in.L)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToInvRan:
		m := protocol.NewInvRan(parties, f)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		r, rInv := m.Result()
		in.Ret <- [2]share.Share{r, rInv}
		return nil

	case vm.IntentToCompare:
		offset, err := l.nextOffset(proc, preprocessing.ElementCompare, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Compare(offset)
		if err != nil {
			return err
		}
		m := protocol.NewCompare(parties, in.A, in.B, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToMod2m:
		offset, err := l.nextOffset(proc, preprocessing.ElementModulo, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Mod2m(offset, in.M)
		if err != nil {
			return err
		}
		m := protocol.NewMod2m(parties, f, in.A, in.M, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		value, _ := m.Result()
		in.Ret <- value
		return nil

	case vm.IntentToModulo:
		bits := log2PowerOfTwo(in.M)
		if bits < 0 {
			return protocol.ErrModulusNotPowerOfTwo
		}
		offset, err := l.nextOffset(proc, preprocessing.ElementModulo, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Mod2m(offset, bits)
		if err != nil {
			return err
		}
		m, err := protocol.NewModulo(parties, f, in.A, in.M, prep)
		if err != nil {
			return err
		}
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		value, _ := m.Result()
		in.Ret <- value
		return nil

	case vm.IntentToTrunc:
		offset, err := l.nextOffset(proc, preprocessing.ElementTrunc, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Mod2m(offset, in.M)
		if err != nil {
			return err
		}
		m := protocol.NewTrunc(parties, f, in.A, in.M, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToTruncPr:
		offset, err := l.nextOffset(proc, preprocessing.ElementTruncPr, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Mod2m(offset, in.M)
		if err != nil {
			return err
		}
		m := protocol.NewTruncPr(parties, f, in.A, in.M, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToDiv:
		if in.D == 0 {
			return errs.ArithmeticError(errs.ReasonDivisionByZero, fmt.Errorf("div: public divisor is zero"))
		}
		offset, err := l.nextOffset(proc, preprocessing.ElementDivisionIntegerSecret, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Div(offset)
		if err != nil {
			return err
		}
		m := protocol.NewDiv(parties, f, in.A, in.D, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToEquals:
		offset, err := l.nextOffset(proc, preprocessing.ElementPublicOutputEquality, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Equals(offset)
		if err != nil {
			return err
		}
		m := protocol.NewPublicOutputEquality(parties, in.A, in.B, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToEqualsIntegerSecret:
		offset, err := l.nextOffset(proc, preprocessing.ElementEqualsIntegerSecret, 1)
		if err != nil {
			return err
		}
		prep, err := l.material.Equals(offset)
		if err != nil {
			return err
		}
		m := protocol.NewEqualsIntegerSecret(parties, f, in.A, in.B, prep)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToIfElse:
		m := protocol.NewIfElse(parties, in.Bit, in.X, in.Y)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToBitDecompose:
		m := protocol.NewBitDecomposition(parties, f, in.A, in.L)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		in.Ret <- m.Result()
		return nil

	case vm.IntentToDKG:
		ecdsaField := field.New(field.Safe256Bits)
		m := protocol.NewDKG(parties, ecdsaField)
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		priv, pub := m.Result()
		in.Ret <- vm.DKGResult{
			PrivateKeyShare: priv,
			PublicKeyX:      ecdsaField.NewElem(new(big.Int).SetBytes(pub.X.Bytes()[:])),
			PublicKeyY:      ecdsaField.NewElem(new(big.Int).SetBytes(pub.Y.Bytes()[:])),
		}
		return nil

	case vm.IntentToSign:
		ecdsaField := field.New(field.Safe256Bits)
		m := protocol.NewSign(parties, ecdsaField, in.X, new(big.Int).SetBytes(in.Digest))
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return err
		}
		r, s := m.Result()
		in.Ret <- vm.SignResult{R: ecdsaField.NewElem(r), S: ecdsaField.NewElem(s)}
		return nil

	case vm.IntentToError:
		return in.Err

	default:
		return fmt.Errorf("orchestrator: launcher has no dispatch for intent kind %v", intent.Kind())
	}
}

// GenerateBatch implements preprocessing.Generator: it drives batchSize
// independent instances of element's underlying protocol (Ran for secret
// integers, RanBit for secret bits) to termination over the same fabric
// every other protocol uses, one instance id per item in the batch so they
// run concurrently-safe and don't collide with any vm.Process's own
// instance ids. The composite elements (Compare, Modulo, TruncPr, ...) are
// consumed, not generated: Launch resolves their preprocessing through the
// launcher's MaterialSource at use time (see the IntentToCompare and similar
// cases in Launch), so this treats every non-bit element as a Ran batch.
func (l *ProtocolLauncher) GenerateBatch(ctx context.Context, element preprocessing.Element, batchID, batchSize uint64) error {
	f := l.cluster.Field()
	parties := l.parties()

	for i := uint64(0); i < batchSize; i++ {
		instanceID := fmt.Sprintf("prep-%s-%d-%d", element, batchID, i)
		var m sm.Machine
		if element == preprocessing.ElementRandomBoolean {
			m = protocol.NewRanBit(parties, f)
		} else {
			m = protocol.NewRan(parties, f)
		}
		if _, err := l.drive(ctx, instanceID, parties, m); err != nil {
			return fmt.Errorf("orchestrator: generate %s batch %d item %d: %w", element, batchID, i, err)
		}
	}
	return nil
}

// GenerateAuxInfo drives the once-per-cluster-lifetime CGGMP21 auxiliary
// information ceremony (protocol.AuxInfo) to termination over the same
// fabric every other protocol instance uses, returning the combined
// auxiliary material every node derives identically. generationID keys the
// instance id so a retried or re-announced ceremony round never collides
// with a prior attempt.
func (l *ProtocolLauncher) GenerateAuxInfo(ctx context.Context, generationID string) ([32]byte, error) {
	f := l.cluster.Field()
	parties := l.parties()
	instanceID := fmt.Sprintf("auxinfo-%s", generationID)

	m := protocol.NewAuxInfo(parties, f)
	outcome, err := l.drive(ctx, instanceID, parties, m)
	if err != nil {
		return [32]byte{}, fmt.Errorf("orchestrator: generate auxiliary material: %w", err)
	}
	if !outcome.Succeeded {
		return [32]byte{}, fmt.Errorf("orchestrator: auxiliary material ceremony failed: %w", outcome.Err)
	}
	material, ok := outcome.Outputs["material"].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("orchestrator: auxiliary material ceremony returned no material")
	}
	return material, nil
}

// log2PowerOfTwo mirrors internal/protocol's unexported modulus check: it
// returns log2(m) if m is a power of two greater than 1, or -1 otherwise.
// Duplicated locally because protocol.NewModulo already performs this
// check internally but does not expose the bit count IntentToModulo's
// preprocessing needs before the constructor can even be called.
func log2PowerOfTwo(m uint64) int {
	if m < 2 || m&(m-1) != 0 {
		return -1
	}
	bits := 0
	for m > 1 {
		m >>= 1
		bits++
	}
	return bits
}

// drive runs machine to termination as one protocol instance, routing its
// outbound messages through fab to the other parties and feeding inbound
// envelopes from each peer back into it, gob-encoding payloads across the
// wire the way internal/protocol/gob.go registers them to allow. It
// generalizes internal/protocol/network_test.go's in-memory simulate
// helper onto a real fabric.Fabric: every message is tagged round 0, since
// no protocol in this library ever calls sm.TransitionTo.
func (l *ProtocolLauncher) drive(ctx context.Context, instanceID string, parties protocol.Parties, machine sm.Machine) (*sm.Outcome, error) {
	peers := make([]sm.PeerID, len(parties.Indices))
	for i, idx := range parties.Indices {
		peers[i] = sm.PeerID(idx)
	}
	rt := sm.NewRuntime(peers, machine)

	l.fab.RegisterInstance(instanceID, parties.Indices)
	defer l.fab.UnregisterInstance(instanceID, parties.Indices)

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan sm.InboundMessage, len(parties.Indices))
	errCh := make(chan error, len(parties.Indices))

	var wg sync.WaitGroup
	for _, idx := range parties.Indices {
		if idx == parties.Self {
			continue
		}
		peer := idx
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				env, err := l.fab.Recv(recvCtx, instanceID, peer)
				if err != nil {
					if recvCtx.Err() != nil {
						return
					}
					select {
					case errCh <- fmt.Errorf("orchestrator: recv from peer %d: %w", peer, err):
					default:
					}
					return
				}
				var payload interface{}
				if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&payload); err != nil {
					select {
					case errCh <- fmt.Errorf("orchestrator: decode payload from peer %d: %w", peer, err):
					default:
					}
					return
				}
				select {
				case inbound <- sm.InboundMessage{From: sm.PeerID(peer), Round: 0, Payload: payload}:
				case <-recvCtx.Done():
					return
				}
			}
		}()
	}

	send := func(out []sm.OutboundMessage) error {
		for _, o := range out {
			if uint64(o.To) == parties.Self {
				// A machine never addresses itself; the protocol library's
				// broadcast helper only ever targets the other parties.
				continue
			}
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(o.Payload); err != nil {
				return fmt.Errorf("orchestrator: encode payload to peer %d: %w", o.To, err)
			}
			env := fabric.Envelope{InstanceID: instanceID, From: parties.Self, Round: 0, Payload: buf.Bytes()}
			if err := l.fab.SendTo(ctx, uint64(o.To), env); err != nil {
				return fmt.Errorf("orchestrator: send to peer %d: %w", o.To, err)
			}
		}
		return nil
	}

	out, err := rt.Deliver(nil)
	if err != nil {
		return nil, err
	}
	if err := send(out); err != nil {
		return nil, err
	}
	if outcome := rt.Outcome(); outcome != nil {
		return outcome, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errCh:
			return nil, err
		case msg := <-inbound:
			out, err := rt.Deliver(&msg)
			if err != nil {
				return nil, err
			}
			if err := send(out); err != nil {
				return nil, err
			}
			if outcome := rt.Outcome(); outcome != nil {
				return outcome, nil
			}
		}
	}
}
