// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "connection failed",
				Reason:  "timeout",
				Hint:    "check cable",
				Try:     "dmscope packet_test",
				Err:     fmt.Errorf("read: timeout"),
			},
			contains: []string{"connection failed", "Reason: timeout", "Hint: check cable", "Try: dmscope packet_test", "Details: read: timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	msg := UserFriendlyError{Message: "msg"}.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("root cause")
	err := UserFriendlyError{Message: "wrapper", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("Unwrap should return the inner error")
	}
}

func TestWrapConnectionError(t *testing.T) {
	if WrapConnectionError(nil, "/dev/ttyUSB0") != nil {
		t.Error("expected nil")
	}

	tests := []struct {
		name    string
		err     error
		target  string
		reason  string
		tryFlag string
	}{
		{"timeout", fmt.Errorf("i/o timeout"), "ws://gw.local/ws", "Connection timeout", "--url ws://gw.local/ws"},
		{"refused", fmt.Errorf("dial tcp: connection refused"), "wss://gw/ws", "Connection refused", "--url wss://gw/ws"},
		{"permission", fmt.Errorf("open /dev/ttyUSB0: permission denied"), "/dev/ttyUSB0", "dialout", "--port /dev/ttyUSB0"},
		{"unknown", fmt.Errorf("weird"), "/dev/ttyACM0", "Gateway communication failed", "--port /dev/ttyACM0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapConnectionError(tt.err, tt.target)
			var ufe UserFriendlyError
			if !errors.As(err, &ufe) {
				t.Fatalf("expected UserFriendlyError, got %T", err)
			}
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("Reason = %q, want %q", ufe.Reason, tt.reason)
			}
			if !strings.Contains(ufe.Try, tt.tryFlag) {
				t.Errorf("Try = %q, want %q", ufe.Try, tt.tryFlag)
			}
			if !errors.Is(err, tt.err) {
				t.Error("original error should be wrapped")
			}
		})
	}
}

func TestWrapDefinitionsError(t *testing.T) {
	invalid := fmt.Errorf("%w: SPN 5 references unknown slot 3", j1939.ErrInvalidDefinition)
	var ufe UserFriendlyError
	if !errors.As(WrapDefinitionsError(invalid, "defs.yaml"), &ufe) {
		t.Fatal("expected UserFriendlyError")
	}
	if !strings.Contains(ufe.Reason, "missing slot") {
		t.Errorf("Reason = %q", ufe.Reason)
	}
	if !errors.Is(ufe, j1939.ErrInvalidDefinition) {
		t.Error("ErrInvalidDefinition should stay reachable")
	}
}

func TestWrapNoResponse(t *testing.T) {
	msg := WrapNoResponse("DM1", 3).Error()
	if !strings.Contains(msg, "No module answered the DM1 request") || !strings.Contains(msg, "3 global request(s)") {
		t.Errorf("Error() = %q", msg)
	}
}
