package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("approve redemption 7: %w", New(ErrOutOfStock, "no stock left for reward %d", 3))

	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("errors.Is(err, ErrOutOfStock) = false")
	}
	if KindOf(err) != ErrOutOfStock {
		t.Errorf("KindOf = %v, want %v", KindOf(err), ErrOutOfStock)
	}
	if got := Message(err); got != "no stock left for reward 3" {
		t.Errorf("Message = %q", got)
	}
	if got := Code(err); got != "out_of_stock" {
		t.Errorf("Code = %q, want %q", got, "out_of_stock")
	}
}

func TestUnkindedError(t *testing.T) {
	err := fmt.Errorf("insert entry: %w", errors.New("disk I/O error"))

	if KindOf(err) != nil {
		t.Errorf("KindOf = %v, want nil", KindOf(err))
	}
	if got := Message(err); got != "internal error" {
		t.Errorf("Message = %q, want %q", got, "internal error")
	}
	if got := Code(err); got != "internal" {
		t.Errorf("Code = %q, want %q", got, "internal")
	}
}

func TestErrorWithoutMessage(t *testing.T) {
	err := &Error{Kind: ErrNotFound}
	if err.Error() != "not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Message(err) != "not found" {
		t.Errorf("Message = %q", Message(err))
	}
}

func TestEveryKindHasCode(t *testing.T) {
	for _, k := range kinds {
		if Code(k) == "internal" {
			t.Errorf("kind %q has no code", k)
		}
	}
}
