package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nilvm/node/internal/errs"
)

func TestClassification(t *testing.T) {
	cases := []struct {
		kind  errs.Kind
		class errs.Class
	}{
		{errs.KindInvalidRequest, errs.ClassClient},
		{errs.KindDuplicate, errs.ClassClient},
		{errs.KindPreprocessingExhausted, errs.ClassResource},
		{errs.KindTimeout, errs.ClassResource},
		{errs.KindProtocolViolation, errs.ClassProtocol},
		{errs.KindAuditFailed, errs.ClassProtocol},
		{errs.KindBugOrPanic, errs.ClassInternal},
	}
	for _, c := range cases {
		if got := c.kind.Class(); got != c.class {
			t.Errorf("%v.Class() = %v, want %v", c.kind, got, c.class)
		}
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("pool empty")
	wrapped := errs.New(errs.KindPreprocessingExhausted, cause)
	var err error = wrapped

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}

	got, ok := errs.As(err)
	if !ok {
		t.Fatal("expected errs.As to extract an Error")
	}
	if got.Kind != errs.KindPreprocessingExhausted {
		t.Fatalf("unexpected kind: %v", got.Kind)
	}
}

func TestArithmeticErrorReason(t *testing.T) {
	e := errs.ArithmeticError(errs.ReasonDivisionByZero, fmt.Errorf("div by zero"))
	if e.Kind != errs.KindArithmeticError {
		t.Fatalf("unexpected kind: %v", e.Kind)
	}
	if e.Reason != errs.ReasonDivisionByZero {
		t.Fatalf("unexpected reason: %v", e.Reason)
	}
}

func TestAuditFailedCarriesReason(t *testing.T) {
	e := errs.AuditFailed("memory size 100 exceeds limit 10")
	if e.Kind != errs.KindAuditFailed {
		t.Fatalf("unexpected kind: %v", e.Kind)
	}
	if e.Kind.Class() != errs.ClassProtocol {
		t.Fatalf("expected AuditFailed to classify as ProtocolError")
	}
}
