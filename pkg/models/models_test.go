package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPhaseNext(t *testing.T) {
	tests := []struct {
		phase Phase
		want  Phase
	}{
		{PhaseObserve, PhaseOrient},
		{PhaseOrient, PhaseDecide},
		{PhaseDecide, PhaseAct},
		{PhaseAct, PhaseObserve},
	}
	for _, tt := range tests {
		if got := tt.phase.Next(); got != tt.want {
			t.Errorf("%s.Next() = %s, want %s", tt.phase, got, tt.want)
		}
	}
}

func TestPhaseValid(t *testing.T) {
	for _, p := range []Phase{PhaseObserve, PhaseOrient, PhaseDecide, PhaseAct} {
		if !p.Valid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if Phase("REFLECT").Valid() {
		t.Error("unknown phase should be invalid")
	}
}

func TestObjectiveStatusTerminal(t *testing.T) {
	tests := []struct {
		status   ObjectiveStatus
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRouting, false},
		{StatusActive, false},
		{StatusBlocked, false},
		{StatusDone, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestCapabilityPermits(t *testing.T) {
	cap := &Capability{
		Name:            "coder",
		ToolPermissions: []string{"file_read", "file_write"},
	}

	if !cap.Permits("file_read") {
		t.Error("expected file_read to be permitted")
	}
	if cap.Permits("shell_exec") {
		t.Error("expected shell_exec to be denied")
	}
}

func TestErrorKindRecoverable(t *testing.T) {
	recoverable := []ErrorKind{KindValidation, KindPermissionDenied, KindTimeout, KindToolFailure}
	for _, k := range recoverable {
		if !k.Recoverable() {
			t.Errorf("%s should be recoverable", k)
		}
	}

	terminal := []ErrorKind{KindUnrouted, KindIterationCeiling}
	for _, k := range terminal {
		if k.Recoverable() {
			t.Errorf("%s should be terminal", k)
		}
	}
}

func TestKernelErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := &KernelError{Kind: KindToolFailure, Message: "write failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}

	var ke *KernelError
	if !errors.As(error(err), &ke) {
		t.Fatal("expected errors.As to match KernelError")
	}
	if ke.Kind != KindToolFailure {
		t.Errorf("Kind = %s, want %s", ke.Kind, KindToolFailure)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewError(KindUnrouted, "no match")); got != KindUnrouted {
		t.Errorf("KindOf = %s, want %s", got, KindUnrouted)
	}
	if got := KindOf(errors.New("plain")); got != KindToolFailure {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindToolFailure)
	}
}

func TestValidatePayload(t *testing.T) {
	observe, _ := MarshalPayload(&ObservePayload{Task: "fix tests", Cycle: 1})
	decide, _ := MarshalPayload(&DecidePayload{ToolID: "file_read", Rationale: "inspect"})

	tests := []struct {
		name    string
		phase   Phase
		payload json.RawMessage
		wantErr bool
	}{
		{"valid observe", PhaseObserve, observe, false},
		{"valid decide", PhaseDecide, decide, false},
		{"empty payload", PhaseObserve, nil, true},
		{"malformed json", PhaseOrient, json.RawMessage("{not json"), true},
		{"unknown field", PhaseAct, json.RawMessage(`{"bogus": 1}`), true},
		{"unknown phase", Phase("BOOT"), observe, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.phase, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindValidation {
				t.Errorf("error kind = %s, want %s", KindOf(err), KindValidation)
			}
		})
	}
}

func TestSnapshotNextPhase(t *testing.T) {
	snap := &LedgerSnapshot{}
	if got := snap.NextPhase(); got != PhaseObserve {
		t.Errorf("fresh snapshot NextPhase = %s, want %s", got, PhaseObserve)
	}

	snap.LastCompletedPhase = PhaseDecide
	if got := snap.NextPhase(); got != PhaseAct {
		t.Errorf("NextPhase after DECIDE = %s, want %s", got, PhaseAct)
	}
}
