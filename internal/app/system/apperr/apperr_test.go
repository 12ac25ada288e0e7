package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crewfund/crew/internal/app/system/docstore"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("donate: %w", ErrInsufficientFunds.WithMessage("balance 10.00 is below 20.00"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Error("expected wrapped, re-messaged error to match sentinel")
	}
	if errors.Is(err, ErrGoalNotReached) {
		t.Error("different codes must not match")
	}
}

func TestFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"domain", ErrCardMismatch, KindPrecondition},
		{"not found", docstore.ErrNotFound, KindNotFound},
		{"conflict", fmt.Errorf("x: %w", docstore.ErrConflict), KindConflict},
		{"exists", docstore.ErrExists, KindConflict},
		{"unavailable", docstore.ErrUnavailable, KindUnavailable},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrom_Nil(t *testing.T) {
	if From(nil) != nil {
		t.Error("From(nil) should be nil")
	}
	var ae *Error
	var err error = ae
	got := From(err)
	if got == nil || got.Kind != KindInternal {
		t.Errorf("From(typed nil) = %v, want internal", got)
	}
}

func TestRetryable(t *testing.T) {
	if !KindConflict.Retryable() || !KindUnavailable.Retryable() {
		t.Error("conflict and unavailable should be retryable")
	}
	if KindPrecondition.Retryable() || KindValidation.Retryable() {
		t.Error("domain failures should not be retryable")
	}
}
