package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSentinel(t *testing.T) {
	wrapped := fmt.Errorf("while reading page 4: %w", ErrStorageCorrupt)
	if !errors.Is(wrapped, ErrStorageCorrupt) {
		t.Fatal("expected errors.Is to match wrapped sentinel")
	}
}

func TestKindOf(t *testing.T) {
	err := Wrap(KindTxTimeout, "writer lock", errors.New("deadline exceeded"))
	if KindOf(err) != KindTxTimeout {
		t.Fatalf("KindOf = %v, want TxTimeout", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("KindOf of a plain error should be KindUnknown")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("fsync: input/output error")
	err := Wrap(KindDurabilityFailed, "commit", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the cause")
	}
}
