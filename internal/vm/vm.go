package vm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Launcher resolves one Intent emitted by a Process: it reserves whatever
// preprocessing material the protocol needs, starts the corresponding
// internal/protocol state machine over the message fabric, and writes the
// outcome into the Intent's own Ret channel before returning. Implemented
// by internal/orchestrator, which owns the fabric, preprocessing pools and
// peer set a running ComputeInstance needs.
type Launcher interface {
	Launch(ctx context.Context, proc ID, intent Intent) error
}

// VM drives Processes to completion, generalizing the teacher's
// core/vm/vm.go central exec/intent-dispatch loop from a fixed wiring of
// three background protocol tasks (rng/mul/open) to a DAG-driven dispatch
// over the full protocol library, with one Launcher call per suspension
// instead of one hard-coded channel send per protocol kind.
type VM struct {
	launcher Launcher
	log      *logrus.Entry
}

// New constructs a VM that resolves intents through launcher.
func New(launcher Launcher, log *logrus.Entry) *VM {
	return &VM{launcher: launcher, log: log.WithField("component", "vm")}
}

// Run drives proc to termination, dispatching every suspension to the
// Launcher and blocking on its completion before resuming — exactly the
// teacher's "intent -> background task -> channel result -> vm.exec again"
// cycle, collapsed into a single synchronous call per Process instead of
// routing through the VM's own recvMessage loop.
func (vm *VM) Run(ctx context.Context, proc *Process) ([]Value, error) {
	for {
		ret := proc.Exec()
		if ret.IsReady() {
			return proc.exitValues(), nil
		}

		intent := ret.Intent()
		if intent == nil {
			return nil, fmt.Errorf("vm: process %x suspended with no pending intent", proc.ID)
		}
		if errIntent, ok := intent.(IntentToError); ok {
			return nil, errIntent.Err
		}

		vm.log.WithFields(logrus.Fields{
			"process": fmt.Sprintf("%x", proc.ID),
			"kind":    intent.Kind(),
		}).Debug("vm: dispatching intent")

		woken := make(chan error, 1)
		go func() {
			woken <- vm.launcher.Launch(ctx, proc.ID, intent)
		}()

		select {
		case err := <-woken:
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
