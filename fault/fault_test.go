package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestEnvelope_Shape(t *testing.T) {
	e := Validationf("Missing required parameter").
		WithFix("Add 'email' to values").
		With("Parameter", "email").
		WithDebug("INSERT INTO `users` ...")

	env := e.Envelope(false)
	if env["Status"] != "Failed" {
		t.Fatalf("Status: got %v", env["Status"])
	}
	if env["Error"] != "Missing required parameter" {
		t.Fatalf("Error: got %v", env["Error"])
	}
	if env["Parameter"] != "email" {
		t.Fatalf("Parameter: got %v", env["Parameter"])
	}
	if _, ok := env["Debug"]; ok {
		t.Fatal("Debug must be hidden outside debug mode")
	}

	env = e.Envelope(true)
	if env["Debug"] != "INSERT INTO `users` ..." {
		t.Fatalf("Debug: got %v", env["Debug"])
	}
}

func TestEnvelope_FieldsCannotOverrideStatus(t *testing.T) {
	e := Validationf("bad").With("Status", "Success")
	if got := e.Envelope(false)["Status"]; got != "Failed" {
		t.Fatalf("Status: got %v, want Failed", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{AccessDenied, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{NotImplemented, http.StatusNotImplemented},
		{Driver, http.StatusInternalServerError},
		{Configuration, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.kind, "x").HTTPStatus(); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestAs_WrapsUnclassified(t *testing.T) {
	fe := As(errors.New("no such column: foo"))
	if fe.Kind != Driver {
		t.Fatalf("kind: got %s", fe.Kind)
	}
	if fe.Exception != "no such column: foo" {
		t.Fatalf("exception: got %q", fe.Exception)
	}

	wrapped := fmt.Errorf("rows: %w", Validationf("Can not update nothing"))
	if !IsKind(wrapped, Validation) {
		t.Fatal("IsKind should see through wrapping")
	}
	if As(wrapped).Message != "Can not update nothing" {
		t.Fatal("As should unwrap to the classified error")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should be nil")
	}
}
