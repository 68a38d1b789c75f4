package oraerr

import (
	"errors"
	"testing"
)

func TestFromServerCode_SessionDead(t *testing.T) {
	e := FromServerCode(3113, "end-of-file on communication channel", 0, false, "")
	if e.Kind != KindOperational {
		t.Fatalf("expected KindOperational, got %v", e.Kind)
	}
	if !e.SessionDead {
		t.Fatalf("expected SessionDead=true for ORA-03113")
	}
}

func TestFromServerCode_Integrity(t *testing.T) {
	e := FromServerCode(1, "unique constraint violated", 1, false, "AAAR3MAABAAAJ7WAAA")
	if e.Kind != KindIntegrity {
		t.Fatalf("expected KindIntegrity, got %v", e.Kind)
	}
	if e.Offset != 1 {
		t.Fatalf("expected offset 1, got %d", e.Offset)
	}
}

func TestFromServerCode_PlainDatabase(t *testing.T) {
	e := FromServerCode(1017, "invalid username/password", 0, false, "")
	if e.Kind != KindDatabase {
		t.Fatalf("expected KindDatabase, got %v", e.Kind)
	}
}

func TestErrorUnwrap(t *testing.T) {
	underlying := errors.New("broken pipe")
	e := Wrap(KindOperational, underlying, "writing packet")
	if !errors.Is(e, underlying) {
		t.Fatalf("expected errors.Is to find wrapped error")
	}
}

func TestErrorIsKindOnly(t *testing.T) {
	e := FromServerCode(60, "deadlock detected", 0, false, "")
	sentinel := &Error{Kind: KindDatabase}
	if !errors.Is(e, sentinel) {
		t.Fatalf("expected kind-only sentinel match")
	}
}

func TestErrorString(t *testing.T) {
	e := FromServerCode(1, "unique constraint violated", 0, false, "")
	if got := e.Error(); got != "ORA-00001: unique constraint violated" {
		t.Fatalf("unexpected message: %q", got)
	}
}
