package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"permission", PermissionDenied("no"), CodePermissionDenied},
		{"validation", Validation("bad input"), CodeValidationFailed},
		{"not_found", NotFound("missing"), CodeNotFound},
		{"conflict", Conflict("taken", nil), CodeConflict},
		{"transport", Transport("send failed", errors.New("timeout")), CodeTransportFailure},
		{"wrapped", fmt.Errorf("outer: %w", Conflict("taken", nil)), CodeConflict},
		{"foreign", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(tc.err); got != tc.want {
				t.Errorf("CodeOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Conflict("route name already taken", cause)

	if got := err.Error(); got != "route name already taken: duplicate key" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable via errors.Is")
	}
}

func TestPredicates(t *testing.T) {
	if !IsConflict(Conflict("x", nil)) || IsConflict(NotFound("x")) {
		t.Error("IsConflict misclassifies")
	}
	if !IsNotFound(NotFound("x")) || IsNotFound(Validation("x")) {
		t.Error("IsNotFound misclassifies")
	}
	if !IsValidation(Validation("x")) || IsValidation(nil) {
		t.Error("IsValidation misclassifies")
	}
	if !IsPermissionDenied(PermissionDenied("x")) {
		t.Error("IsPermissionDenied misclassifies")
	}
}
