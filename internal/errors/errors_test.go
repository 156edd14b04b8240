package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		wantErr  string
		wantUser string
	}{
		{
			name:     "what only",
			err:      &Error{What: "something broke"},
			wantErr:  "something broke",
			wantUser: "Error: something broke",
		},
		{
			name:     "what and why",
			err:      &Error{What: "something broke", Why: "bad input"},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input",
		},
		{
			name: "full error",
			err: &Error{
				What: "something broke",
				Why:  "bad input",
				Fix:  "try again",
			},
			wantErr:  "something broke: bad input",
			wantUser: "Error: something broke\n\nWhy: bad input\n\nFix: try again",
		},
		{
			name: "with cause",
			err: &Error{
				What:  "something broke",
				Cause: errors.New("underlying error"),
			},
			wantErr:  "something broke: underlying error",
			wantUser: "Error: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantErr {
				t.Errorf("Error() = %q, want %q", got, tt.wantErr)
			}
			if got := tt.err.UserMessage(); got != tt.wantUser {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantUser)
			}
		})
	}
}

func TestErrorJSON(t *testing.T) {
	err := &Error{
		Code:  CodeTaskNotFound,
		What:  "task t1 not found",
		Why:   "No task with this ID exists",
		Cause: errors.New("file not found"),
	}

	data, marshalErr := json.Marshal(err)
	if marshalErr != nil {
		t.Fatalf("Marshal failed: %v", marshalErr)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded["code"] != string(CodeTaskNotFound) {
		t.Errorf("code = %v, want %v", decoded["code"], CodeTaskNotFound)
	}
	if decoded["cause"] != "file not found" {
		t.Errorf("cause = %v, want %q", decoded["cause"], "file not found")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeTaskNotFound, 404},
		{CodeSessionNotFound, 404},
		{CodeValidation, 400},
		{CodeCrossProject, 400},
		{CodeCycleDetected, 400},
		{CodeInvalidTransition, 409},
		{CodeBuiltinProtected, 409},
		{CodeStorage, 500},
		{Code("BOGUS"), 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := &Error{Code: tt.code, What: "x"}
			if got := err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	base := ErrTaskNotFound("t1")
	wrapped := fmt.Errorf("loading: %w", base)

	if !errors.Is(wrapped, &Error{Code: CodeTaskNotFound}) {
		t.Error("errors.Is should match by code through wrapping")
	}
	if errors.Is(wrapped, &Error{Code: CodeSessionNotFound}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestAsError(t *testing.T) {
	base := ErrCycleDetected("a", "b")
	wrapped := fmt.Errorf("setParent: %w", base)

	got := AsError(wrapped)
	if got == nil {
		t.Fatal("AsError returned nil for wrapped conductor error")
	}
	if got.Code != CodeCycleDetected {
		t.Errorf("code = %s, want %s", got.Code, CodeCycleDetected)
	}

	if AsError(errors.New("plain")) != nil {
		t.Error("AsError should return nil for non-conductor errors")
	}
}
