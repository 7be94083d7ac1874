// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package errors wraps failures shown to the user with a reason, a hint and
// a command to try next.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapConnectionError wraps failures to open or use the gateway link
func WrapConnectionError(err error, target string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with gateway at %s", target),
		Reason:  extractConnectionReason(err),
		Hint:    "Check that the gateway is powered and the port or URL is correct",
		Try:     "dmscope packet_test " + connectionFlag(target),
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Timeouts are in milliseconds and addresses are 0-253",
		Try:     "dmscope --config " + configPath + " --log-level debug packet_test",
		Err:     err,
	}
}

// WrapDefinitionsError wraps failures to load a definition file
func WrapDefinitionsError(err error, path string) error {
	if err == nil {
		return nil
	}

	reason := "The definition file could not be read"
	if errors.Is(err, j1939.ErrInvalidDefinition) {
		reason = "The definition file references a missing slot or has an invalid entry"
	} else if strings.Contains(err.Error(), "parse") {
		reason = "The definition file is not valid YAML"
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to load SPN/PGN definitions from %s", path),
		Reason:  reason,
		Hint:    "Every SPN must name a slot defined in the slots section",
		Try:     "Run without --definitions to use the built-in definitions",
		Err:     err,
	}
}

// WrapNoResponse explains a global request nobody answered
func WrapNoResponse(pgnName string, attempts int) error {
	return UserFriendlyError{
		Message: fmt.Sprintf("No module answered the %s request", pgnName),
		Reason:  fmt.Sprintf("%d global request(s) received no response", attempts),
		Hint:    "The ignition may be off or the gateway may not be on the diagnostic bus",
		Try:     "dmscope raw_log to confirm traffic is arriving",
	}
}

func extractConnectionReason(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "Connection timeout - gateway may be offline or unreachable"
	case strings.Contains(errStr, "connection refused"):
		return "Connection refused - gateway is not listening on this address"
	case strings.Contains(errStr, "HTTP 401") || strings.Contains(errStr, "bad handshake"):
		return "WebSocket handshake rejected - check username and password"
	case strings.Contains(errStr, "permission denied"):
		return "Permission denied - the serial port may need dialout group membership"
	case strings.Contains(errStr, "no such file") || strings.Contains(errStr, "not found"):
		return "Serial port does not exist"
	}
	return "Gateway communication failed"
}

func connectionFlag(target string) string {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return "--url " + target
	}
	return "--port " + target
}
