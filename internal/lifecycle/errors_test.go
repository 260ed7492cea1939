package lifecycle

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	cause := errors.New("EACCES")
	err := fmt.Errorf("attach: %w", NewError(CodePermissionDenied, "access refused", cause))

	if !HasCode(err, CodePermissionDenied) {
		t.Error("HasCode() = false through wrapping")
	}
	if HasCode(err, CodeDeviceBusy) {
		t.Error("HasCode() matched the wrong code")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable with errors.Is")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf() on a plain error is not empty")
	}

	want := "PERMISSION_DENIED: access refused: EACCES"
	if got := NewError(CodePermissionDenied, "access refused", cause).Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStateString(t *testing.T) {
	if StateStreaming.String() != "streaming" || StatePermissionRequested.String() != "permission_requested" {
		t.Error("unexpected state names")
	}
	if State(99).String() != "unknown" {
		t.Error("out of range state has a name")
	}
	if len(States()) != 9 {
		t.Errorf("States() = %d entries, want 9", len(States()))
	}
	text, _ := StateOpen.MarshalText()
	if string(text) != "open" {
		t.Errorf("MarshalText() = %s", text)
	}
}
