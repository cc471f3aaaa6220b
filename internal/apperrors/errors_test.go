package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("title", "job title is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "job title is required" {
		t.Errorf("expected message 'job title is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "title" {
		t.Errorf("expected field 'title', got %q", appErr.Field)
	}
}

func TestTransport(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("connection refused")
	err := Transport("client.get", cause)

	if !errors.Is(err, ErrTransport) {
		t.Error("expected error to match ErrTransport")
	}
	if err.Error() != "client.get: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}

func TestSubmission(t *testing.T) {
	t.Parallel()
	err := Submission(422, "duplicate title")

	if !errors.Is(err, ErrSubmission) {
		t.Error("expected error to match ErrSubmission")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.StatusCode != 422 {
		t.Errorf("expected status code 422, got %d", appErr.StatusCode)
	}
}

func TestAcceptance(t *testing.T) {
	t.Parallel()
	err := Acceptance(403)

	if !errors.Is(err, ErrAcceptance) {
		t.Error("expected error to match ErrAcceptance")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.StatusCode != 403 {
		t.Errorf("expected status code 403, got %d", appErr.StatusCode)
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"acceptance", Acceptance(403), false},
		{"wrapped acceptance", fmt.Errorf("manage: %w", Acceptance(401)), false},
		{"submission", Submission(500, "boom"), true},
		{"unknown status", UnknownStatus("Test"), true},
		{"manifest", Manifest("downloader.manifest", fmt.Errorf("empty urlList")), true},
		{"plain error", fmt.Errorf("anything"), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.fatal)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := UnknownStatus("Test")
	wrapped := fmt.Errorf("manage: %w", original)
	doubleWrapped := fmt.Errorf("run: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrUnknownStatus) {
		t.Error("expected errors.Is to find ErrUnknownStatus through multiple wraps")
	}
}
