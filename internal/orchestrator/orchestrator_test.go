package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nilvm/node/internal/audit"
	"github.com/nilvm/node/internal/orchestrator"
	"github.com/nilvm/node/internal/preprocessing"
	"github.com/nilvm/node/internal/vm"
)

type stubPrograms struct{ prog orchestrator.Program }

func (s stubPrograms) FetchProgram(ctx context.Context, id string) (orchestrator.Program, error) {
	return s.prog, nil
}

type stubValues struct{}

func (stubValues) FetchValues(ctx context.Context, id string) (map[string]vm.Value, error) {
	return map[string]vm.Value{}, nil
}

type stubOutputs struct {
	stored map[string]vm.Value
}

func (s *stubOutputs) StoreOutputs(ctx context.Context, computeID uuid.UUID, outputs map[string]vm.Value) error {
	s.stored = outputs
	return nil
}

type stubLauncher struct{}

func (stubLauncher) Launch(ctx context.Context, proc vm.ID, intent vm.Intent) error {
	return nil
}

func TestInvokeComputeSucceedsOnTrivialProgram(t *testing.T) {
	outputs := &stubOutputs{}
	o := orchestrator.New(orchestrator.Config{
		Pools:    map[preprocessing.Element]*preprocessing.Pool{},
		Launcher: stubLauncher{},
		Programs: stubPrograms{prog: orchestrator.Program{
			ID: "trivial",
			AuditProgram: audit.Program{
				MemorySize: 1,
				InputAddrs: map[int]bool{},
			},
			Requirements: map[preprocessing.Element]uint64{},
			Build: func(computeID uuid.UUID, inputs map[string]vm.Value) (*vm.Process, error) {
				proc := vm.NewProcess(vm.ID{}, vm.Memory{}, vm.Code{
					{Op: vm.OpExit, Operands: nil},
				})
				return &proc, nil
			},
		}},
		Values:          stubValues{},
		Outputs:         outputs,
		DefaultDeadline: time.Second,
	}, logrus.NewEntry(logrus.New()))

	inst, err := o.InvokeCompute(context.Background(), orchestrator.Request{ProgramID: "trivial"})
	if err != nil {
		t.Fatalf("InvokeCompute returned error: %v", err)
	}

	var last orchestrator.Update
	for u := range inst.Updates() {
		last = u
	}

	if last.Err != nil {
		t.Fatalf("expected success, got error: %v", last.Err)
	}
	if inst.State() != orchestrator.StateSucceeded {
		t.Fatalf("expected Succeeded, got %v", inst.State())
	}
}

func TestInvokeComputeFailsAuditRejectsOversizedProgram(t *testing.T) {
	o := orchestrator.New(orchestrator.Config{
		Pools:       map[preprocessing.Element]*preprocessing.Pool{},
		AuditConfig: audit.Config{MaxMemorySize: 10},
		Launcher:    stubLauncher{},
		Programs: stubPrograms{prog: orchestrator.Program{
			ID:           "too-big",
			AuditProgram: audit.Program{MemorySize: 1000, InputAddrs: map[int]bool{}},
			Requirements: map[preprocessing.Element]uint64{},
		}},
		Values:          stubValues{},
		Outputs:         &stubOutputs{},
		DefaultDeadline: time.Second,
	}, logrus.NewEntry(logrus.New()))

	inst, err := o.InvokeCompute(context.Background(), orchestrator.Request{ProgramID: "too-big"})
	if err != nil {
		t.Fatalf("InvokeCompute returned error: %v", err)
	}
	var last orchestrator.Update
	for u := range inst.Updates() {
		last = u
	}
	if last.Err == nil {
		t.Fatal("expected audit failure to surface as an error update")
	}
	if inst.State() != orchestrator.StateFailed {
		t.Fatalf("expected Failed, got %v", inst.State())
	}
}
