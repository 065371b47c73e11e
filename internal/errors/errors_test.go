package errors

import (
	stderrors "errors"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(EmptyGraph, "no entities supplied")
	want := "[EMPTY_GRAPH] no entities supplied"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(StorageError, "failed to persist run", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "[STORAGE_ERROR] failed to persist run: disk full" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		code  ErrorCode
		fatal bool
	}{
		{EmptyGraph, true},
		{StorageError, true},
		{InternalError, true},
		{DanglingEdge, false},
		{NonConvergence, false},
		{ConstraintViolation, false},
		{BudgetInfeasible, false},
		{Cancelled, false},
	}

	for _, c := range cases {
		if got := New(c.code, "x").IsFatal(); got != c.fatal {
			t.Errorf("IsFatal(%s) = %v, want %v", c.code, got, c.fatal)
		}
	}
}
