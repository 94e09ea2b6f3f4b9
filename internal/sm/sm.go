// Package sm implements the generic, round-synchronized protocol
// state-machine runtime described by the compute core: every concrete
// protocol in internal/protocol is a Machine driven to termination by a
// Runtime that enforces round discipline, message queuing, and the
// protocol-violation/failure rules shared by the whole protocol library.
//
// The runtime generalizes the teacher's core/task.Reducer/IO pattern (a
// Reducer that consumes one Message and optionally produces one) into a
// round-aware driver: a Machine's Step is only ever invoked once the
// round's messages have been gated by the Runtime, exactly as the teacher's
// open.opener and mul.multiplier privately gate their own reduction on
// having received "enough" messages before producing output.
package sm

import (
	"errors"
	"fmt"
	"sync"
)

// PeerID identifies a cluster member participating in a protocol instance.
type PeerID uint64

// StateTag labels a Machine's internal state for observability and for the
// runtime's own bookkeeping; it carries no semantics for the runtime beyond
// equality and string formatting.
type StateTag string

// FailureKind classifies why a Machine or its Runtime failed, mirroring the
// ProtocolError kinds in spec §7.
type FailureKind string

const (
	FailureProtocolViolation FailureKind = "ProtocolViolation"
	FailurePeerDisconnected  FailureKind = "PeerDisconnected"
	FailureTimeout           FailureKind = "Timeout"
	FailureArithmetic        FailureKind = "Arithmetic"
)

// InboundMessage is one message received from a peer, tagged with the round
// it is destined for. A Machine never sees the round tag directly — the
// Runtime uses it to decide whether to deliver the message now or queue it.
type InboundMessage struct {
	From    PeerID
	Round   int
	Payload interface{}
}

// OutboundMessage is one message a Machine wants sent to a specific peer.
type OutboundMessage struct {
	To      PeerID
	Payload interface{}
}

// StepResult is the outcome of a single Machine.Step call. Exactly one of
// the constructor functions below (EmitMessages, TransitionTo,
// WaitForMoreMessages, Terminated, Failed) produces a valid StepResult; the
// zero value is not meaningful and callers must use the constructors.
type StepResult struct {
	kind        stepKind
	messages    []OutboundMessage
	nextState   StateTag
	outputs     map[string]interface{}
	failureKind FailureKind
	err         error
}

type stepKind int

const (
	stepEmitMessages stepKind = iota
	stepTransitionTo
	stepWaitForMoreMessages
	stepTerminated
	stepFailed
)

// EmitMessages returns a StepResult that sends messages to peers without
// changing round or state.
func EmitMessages(messages []OutboundMessage) StepResult {
	return StepResult{kind: stepEmitMessages, messages: messages}
}

// TransitionTo returns a StepResult that advances the Machine to a new
// state and round, optionally emitting messages for the new round.
func TransitionTo(state StateTag, messages []OutboundMessage) StepResult {
	return StepResult{kind: stepTransitionTo, nextState: state, messages: messages}
}

// WaitForMoreMessages returns a StepResult indicating the Machine needs
// more input before it can progress.
func WaitForMoreMessages() StepResult {
	return StepResult{kind: stepWaitForMoreMessages}
}

// Terminated returns a StepResult that ends the Machine successfully with
// the given named outputs.
func Terminated(outputs map[string]interface{}) StepResult {
	return StepResult{kind: stepTerminated, outputs: outputs}
}

// Failed returns a StepResult that ends the Machine with a classified
// failure.
func Failed(kind FailureKind, err error) StepResult {
	return StepResult{kind: stepFailed, failureKind: kind, err: err}
}

// Machine is the contract every concrete protocol in internal/protocol
// implements. A Machine is a finite sequence of rounds; within a round the
// Runtime rejects a second message from the same peer, and the Machine
// itself decides, from the messages it has seen, when to transition.
type Machine interface {
	// Step consumes one inbound message (nil for a purely-internal
	// transition, such as the first step of a protocol that sends before
	// receiving) and returns a StepResult.
	Step(inbound *InboundMessage) StepResult

	// CurrentState reports the Machine's state tag for observability.
	CurrentState() StateTag
}

// ErrTerminal is returned by Deliver once the Runtime has reached a
// terminal state (Terminated or Failed); further step calls are rejected,
// per the monotonic-termination invariant.
var ErrTerminal = errors.New("sm: runtime already terminated")

// Outcome is the terminal result surfaced to the caller once a Runtime
// stops accepting further messages.
type Outcome struct {
	Succeeded bool
	Outputs   map[string]interface{}
	Failure   FailureKind
	Err       error
}

// Runtime drives a single Machine instance through its rounds, enforcing:
//
//   - at most one outstanding transition at a time (guarded by a mutex, since
//     a Runtime's Deliver may be called concurrently by the message fabric's
//     demultiplexer for different peers);
//   - messages destined for a future round are queued, not dropped;
//   - an unexpected message from a peer already seen in the current round
//     fails the Machine with FailureProtocolViolation;
//   - once terminal, further Deliver calls return ErrTerminal.
type Runtime struct {
	mu           sync.Mutex
	machine      Machine
	participants []PeerID

	round   int
	seen    map[PeerID]bool
	pending map[int][]InboundMessage

	outcome *Outcome
}

// NewRuntime constructs a Runtime for machine over the given participant
// set. The Runtime starts at round 0; callers that need to emit an initial
// message before receiving anything should call Deliver(nil) once to pump
// the Machine's first Step.
func NewRuntime(participants []PeerID, machine Machine) *Runtime {
	return &Runtime{
		machine:      machine,
		participants: participants,
		seen:         map[PeerID]bool{},
		pending:      map[int][]InboundMessage{},
	}
}

// CurrentState reports the underlying Machine's state tag.
func (r *Runtime) CurrentState() StateTag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.CurrentState()
}

// Outcome returns the Runtime's terminal outcome, or nil if still running.
func (r *Runtime) Outcome() *Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcome
}

// Deliver feeds one inbound message (or nil, to pump an internal
// transition) to the Runtime. It returns the outbound messages produced as
// a side effect of delivery, which the caller (normally the message
// fabric) is responsible for routing to the corresponding peers.
func (r *Runtime) Deliver(msg *InboundMessage) ([]OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outcome != nil {
		return nil, ErrTerminal
	}

	if msg != nil && msg.Round > r.round {
		r.pending[msg.Round] = append(r.pending[msg.Round], *msg)
		return nil, nil
	}

	if msg != nil && msg.Round == r.round {
		if r.seen[msg.From] {
			r.fail(FailureProtocolViolation, fmt.Errorf("sm: duplicate message from peer %v in round %d", msg.From, r.round))
			return nil, nil
		}
		r.seen[msg.From] = true
	}

	result := r.machine.Step(msg)
	return r.apply(result)
}

// apply interprets a StepResult, updating the Runtime's round/terminal
// bookkeeping and replaying any messages queued for a newly-entered round.
func (r *Runtime) apply(result StepResult) ([]OutboundMessage, error) {
	switch result.kind {
	case stepEmitMessages:
		return result.messages, nil

	case stepWaitForMoreMessages:
		return nil, nil

	case stepTransitionTo:
		r.advanceRound()
		out := append([]OutboundMessage{}, result.messages...)
		replay, err := r.replayPending()
		if err != nil {
			return out, err
		}
		return append(out, replay...), nil

	case stepTerminated:
		r.outcome = &Outcome{Succeeded: true, Outputs: result.outputs}
		return nil, nil

	case stepFailed:
		r.outcome = &Outcome{Succeeded: false, Failure: result.failureKind, Err: result.err}
		return nil, nil

	default:
		panic(fmt.Sprintf("sm: unhandled step result kind %v", result.kind))
	}
}

func (r *Runtime) advanceRound() {
	r.round++
	r.seen = map[PeerID]bool{}
}

func (r *Runtime) fail(kind FailureKind, err error) {
	r.outcome = &Outcome{Succeeded: false, Failure: kind, Err: err}
}

// replayPending re-delivers any messages queued for the round the Runtime
// has just entered. A message that was queued for a round further still in
// the future is re-queued rather than delivered early.
func (r *Runtime) replayPending() ([]OutboundMessage, error) {
	queued := r.pending[r.round]
	delete(r.pending, r.round)

	var out []OutboundMessage
	for i := range queued {
		msg := queued[i]
		outbound, err := r.deliverLocked(&msg)
		if err != nil {
			return out, err
		}
		out = append(out, outbound...)
	}
	return out, nil
}

// deliverLocked is Deliver's body, reentered by replayPending while the
// Runtime's mutex is already held.
func (r *Runtime) deliverLocked(msg *InboundMessage) ([]OutboundMessage, error) {
	if r.outcome != nil {
		return nil, ErrTerminal
	}
	if msg != nil && msg.Round > r.round {
		r.pending[msg.Round] = append(r.pending[msg.Round], *msg)
		return nil, nil
	}
	if msg != nil && msg.Round == r.round {
		if r.seen[msg.From] {
			r.fail(FailureProtocolViolation, fmt.Errorf("sm: duplicate message from peer %v in round %d", msg.From, r.round))
			return nil, nil
		}
		r.seen[msg.From] = true
	}
	result := r.machine.Step(msg)
	return r.apply(result)
}

// Cancel transitions the Runtime to a Canceled-equivalent terminal state
// without further messages being emitted, per the fabric's cancellation
// contract (spec §4.4/§5).
func (r *Runtime) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome != nil {
		return
	}
	r.outcome = &Outcome{Succeeded: false, Failure: "Canceled", Err: errors.New("sm: instance canceled")}
}

// Fail transitions the Runtime to Failed(kind) from the outside, used by
// the message fabric when a peer stream disconnects mid-protocol.
func (r *Runtime) Fail(kind FailureKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome != nil {
		return
	}
	r.fail(kind, err)
}
