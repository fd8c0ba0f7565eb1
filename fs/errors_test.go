package fs

import (
	"errors"
	"io"
	"testing"
)

func TestIsApplicationError(t *testing.T) {
	if !IsApplicationError(ErrFileNotFound) {
		t.Error("ErrFileNotFound must be an application error")
	}
	if IsApplicationError(io.ErrUnexpectedEOF) {
		t.Error("a plain stdlib error must not be an application error")
	}
	if IsApplicationError(nil) {
		t.Error("nil must not be an application error")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	wrapped := Wrap(FileNotFound, io.ErrClosedPipe)
	if !errors.Is(wrapped, ErrFileNotFound) {
		t.Error("errors.Is must match sentinels sharing a Kind")
	}
	if errors.Is(wrapped, ErrFileExists) {
		t.Error("errors.Is must not match a different Kind")
	}
	if !errors.Is(wrapped, io.ErrClosedPipe) {
		t.Error("errors.Is must still see through Unwrap to the cause")
	}
}

func TestKindFromCodeRoundTrip(t *testing.T) {
	for k := FileNotFound; k <= TruncatedStream; k++ {
		if got := KindFromCode(k.Code()); got != k {
			t.Errorf("KindFromCode(%d) = %v, want %v", k.Code(), got, k)
		}
	}
	if KindFromCode(999) != Unknown {
		t.Error("an unrecognized code must map to Unknown")
	}
}
