// Package orchestrator implements the compute orchestrator (CO): the
// state machine that takes an InvokeCompute request from Admitted through
// Reserving, Running and Finalizing to a terminal state, consulting the
// program auditor (internal/audit), reserving preprocessing atomically
// (internal/preprocessing), running the program VM (internal/vm) on its
// own goroutine with a cancellation handle, and storing results for
// RetrieveResults.
//
// No equivalent appears in the teacher: republicprotocol/tau wires one VM
// per network participant directly, with no admission/audit/reservation
// gate in front of it. CO is grounded directly against spec.md §4.7's step
// list, using the teacher's task/error idioms (a small closed set of
// sentinel-tagged states and errors) for its own state machine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/audit"
	"github.com/nilvm/node/internal/errs"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/vm"
)

// State is a ComputeInstance's position in its lifecycle.
type State int

const (
	StateAdmitted State = iota
	StateReserving
	StateRunning
	StateFinalizing
	StateSucceeded
	StateFailed
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateAdmitted:
		return "Admitted"
	case StateReserving:
		return "Reserving"
	case StateRunning:
		return "Running"
	case StateFinalizing:
		return "Finalizing"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ProgramStore fetches a compiled Program and its audited MIR shape by ID.
type ProgramStore interface {
	FetchProgram(ctx context.Context, programID string) (Program, error)
}

// Program bundles what CO needs to audit, reserve for, and run a program.
// Build takes computeID, not just the resolved inputs, because it has to
// derive the built Process's vm.ID deterministically: every cooperating
// node admits the identical compute under the identical computeID (see
// InvokeComputeWithID), but each holds a different secret share of the
// same resolved inputs, so the inputs themselves can't be hashed into a
// cluster-wide-identical id the way computeID already is.
type Program struct {
	ID           string
	AuditProgram audit.Program
	Requirements map[preprocessing.Element]uint64
	Build        func(computeID uuid.UUID, inputs map[string]vm.Value) (*vm.Process, error)
}

// ValueStore resolves a client's bound input values_id to concrete VM
// values ready to seed a Process's memory.
type ValueStore interface {
	FetchValues(ctx context.Context, valuesID string) (map[string]vm.Value, error)
}

// OutputStore persists a finished compute's outputs, keyed by compute_id,
// for later RetrieveResults calls.
type OutputStore interface {
	StoreOutputs(ctx context.Context, computeID uuid.UUID, outputs map[string]vm.Value) error
}

// Request is one InvokeCompute call.
type Request struct {
	ProgramID      string
	ValuesID       string
	OutputBindings []string // party ids entitled to retrieve results
	Deadline       time.Duration
}

// Update is one message RetrieveResults streams back: Waiting until the
// instance reaches a terminal state, then exactly one Success or Error.
type Update struct {
	Waiting bool
	Success map[string]vm.Value
	Err     error
}

// Instance is one admitted ComputeInstance.
type Instance struct {
	ComputeID      uuid.UUID
	ProgramID      string
	OutputBindings []string

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	updates chan Update
}

// State returns the instance's current lifecycle state.
func (inst *Instance) State() State {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state
}

func (inst *Instance) setState(s State) {
	inst.mu.Lock()
	inst.state = s
	inst.mu.Unlock()
}

// Cancel transitions a running instance to Canceled, stopping its VM.
func (inst *Instance) Cancel() {
	inst.mu.Lock()
	cancel := inst.cancel
	inst.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Updates returns the channel RetrieveResults reads from: {Waiting}
// messages until a terminal state, then one Success or Error, then closed.
func (inst *Instance) Updates() <-chan Update {
	return inst.updates
}

// Orchestrator runs InvokeCompute requests to completion.
type Orchestrator struct {
	pools        map[preprocessing.Element]*preprocessing.Pool
	auditCfg     audit.Config
	launcher     vm.Launcher
	programs     ProgramStore
	values       ValueStore
	outputs      OutputStore
	log          *logrus.Entry
	defaultDeadline time.Duration

	mu        sync.Mutex
	instances map[uuid.UUID]*Instance
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	Pools           map[preprocessing.Element]*preprocessing.Pool
	AuditConfig     audit.Config
	Launcher        vm.Launcher
	Programs        ProgramStore
	Values          ValueStore
	Outputs         OutputStore
	DefaultDeadline time.Duration
}

// New constructs an Orchestrator.
func New(cfg Config, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		pools:           cfg.Pools,
		auditCfg:        cfg.AuditConfig,
		launcher:        cfg.Launcher,
		programs:        cfg.Programs,
		values:          cfg.Values,
		outputs:         cfg.Outputs,
		defaultDeadline: cfg.DefaultDeadline,
		log:             log.WithField("component", "orchestrator"),
		instances:       map[uuid.UUID]*Instance{},
	}
}

// InvokeCompute admits req, running spec.md §4.7's seven steps: verify
// receipt happens one layer up (internal/rpc, external to CO), so this
// starts at fetching the program.
func (o *Orchestrator) InvokeCompute(ctx context.Context, req Request) (*Instance, error) {
	return o.InvokeComputeWithID(ctx, uuid.New(), req)
}

// InvokeComputeWithID is InvokeCompute with a caller-chosen compute id. Every
// cooperating node must admit the same ComputeInstance under the same id
// (internal/rpc's Compute.StreamCompute fans a client's InvokeCompute out to
// every peer carrying the leader-assigned id) so that internal/fabric's
// per-instance queues, addressed by the VM's own deterministic protocol
// instance ids rather than this id, still line up: every node runs the
// identical program against its own shares, in the identical instruction
// order, starting from the identical admission.
func (o *Orchestrator) InvokeComputeWithID(ctx context.Context, computeID uuid.UUID, req Request) (*Instance, error) {
	inst := &Instance{
		ComputeID:      computeID,
		ProgramID:      req.ProgramID,
		OutputBindings: req.OutputBindings,
		state:          StateAdmitted,
		updates:        make(chan Update, 1),
	}

	o.mu.Lock()
	o.instances[computeID] = inst
	o.mu.Unlock()

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = o.defaultDeadline
	}
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	inst.mu.Lock()
	inst.cancel = cancel
	inst.mu.Unlock()

	go o.run(runCtx, inst, req)
	return inst, nil
}

func (o *Orchestrator) run(ctx context.Context, inst *Instance, req Request) {
	defer close(inst.updates)
	inst.updates <- Update{Waiting: true}

	log := o.log.WithField("compute_id", inst.ComputeID.String())

	prog, err := o.programs.FetchProgram(ctx, req.ProgramID)
	if err != nil {
		o.fail(inst, log, errs.New(errs.KindNotFound, fmt.Errorf("fetch program %q: %w", req.ProgramID, err)))
		return
	}

	if res := audit.Audit(o.auditCfg, prog.AuditProgram); !res.OK() {
		o.fail(inst, log, errs.AuditFailed(res.Reason))
		return
	}

	inst.setState(StateReserving)
	reserved, err := o.reserveAll(prog.Requirements)
	if err != nil {
		if errors.Is(err, preprocessing.ErrExhausted) {
			o.fail(inst, log, errs.New(errs.KindPreprocessingExhausted, err))
			return
		}
		o.fail(inst, log, errs.New(errs.KindBugOrPanic, err))
		return
	}
	// Reserved offsets are considered consumed the moment they are
	// reserved, success or failure alike (spec §4.7 step 6) — this call
	// happens unconditionally on every exit path below via defer.
	defer o.consumeAll(reserved)

	inputs, err := o.values.FetchValues(ctx, req.ValuesID)
	if err != nil {
		o.fail(inst, log, errs.New(errs.KindNotFound, fmt.Errorf("fetch values %q: %w", req.ValuesID, err)))
		return
	}

	proc, err := prog.Build(inst.ComputeID, inputs)
	if err != nil {
		o.fail(inst, log, errs.New(errs.KindInvalidRequest, fmt.Errorf("build process: %w", err)))
		return
	}

	if rt, ok := o.launcher.(RangeTracker); ok {
		rt.Track(proc.ID, reserved)
		defer rt.Untrack(proc.ID)
	}

	inst.setState(StateRunning)
	machine := vm.New(o.launcher, log)
	results, err := machine.Run(ctx, proc)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || ctx.Err() == context.Canceled {
			inst.setState(StateCanceled)
			inst.updates <- Update{Err: errs.New(errs.KindTimeout, ctx.Err())}
			return
		}
		if classified, ok := errs.As(err); ok {
			o.fail(inst, log, classified)
			return
		}
		o.fail(inst, log, errs.New(errs.KindProtocolViolation, err))
		return
	}

	inst.setState(StateFinalizing)
	outputs := map[string]vm.Value{}
	for i, v := range results {
		outputs[fmt.Sprintf("out%d", i)] = v
	}
	if err := o.outputs.StoreOutputs(ctx, inst.ComputeID, outputs); err != nil {
		o.fail(inst, log, errs.New(errs.KindStorageUnavailable, fmt.Errorf("store outputs: %w", err)))
		return
	}

	inst.setState(StateSucceeded)
	inst.updates <- Update{Success: outputs}
}

func (o *Orchestrator) fail(inst *Instance, log *logrus.Entry, err error) {
	log.WithError(err).Warn("orchestrator: compute failed")
	inst.setState(StateFailed)
	inst.updates <- Update{Err: err}
}

// reserveAll reserves every required element atomically from CO's point of
// view: if any single reservation fails with ErrExhausted, every range
// already reserved this call is rolled forward into consumed (never
// returned — spec §4.7 step 6 applies even to a failed admission) and the
// error is surfaced to the caller as a fail-fast Exhausted.
func (o *Orchestrator) reserveAll(requirements map[preprocessing.Element]uint64) (map[preprocessing.Element]preprocessing.Range, error) {
	reserved := map[preprocessing.Element]preprocessing.Range{}
	for element, n := range requirements {
		pool, ok := o.pools[element]
		if !ok {
			return reserved, fmt.Errorf("orchestrator: no pool configured for element %q", element)
		}
		r, err := pool.Reserve(n)
		if err != nil {
			o.consumeAll(reserved)
			return nil, err
		}
		reserved[element] = r
	}
	return reserved, nil
}

func (o *Orchestrator) consumeAll(reserved map[preprocessing.Element]preprocessing.Range) {
	for element, r := range reserved {
		if pool, ok := o.pools[element]; ok {
			pool.MarkConsumed(r)
		}
	}
}

// Lookup returns a previously admitted Instance by compute id.
func (o *Orchestrator) Lookup(computeID uuid.UUID) (*Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[computeID]
	return inst, ok
}
