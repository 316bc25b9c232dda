// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Exit codes and error display for citechat commands.
//
// Commands always return errors; Execute decides how to show them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/citechat/internal/assistant"
	"github.com/jeranaias/citechat/internal/config"
	"github.com/jeranaias/citechat/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates the relay rejected our credentials
	ExitAuthError = 4
	// ExitNetworkError indicates the relay could not be reached or failed
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid arguments to a command.
type UsageError struct {
	Command string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := e.Command + ": " + e.Reason
	if e.Example != "" {
		msg += " (example: " + e.Example + ")"
	}
	return msg
}

// newUsageError creates a UsageError.
func newUsageError(command, reason, example string) error {
	return &UsageError{Command: command, Reason: reason, Example: example}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode determines the exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validateErrs config.ValidateErrors
	if errors.As(err, &validateErrs) ||
		errors.Is(err, config.ErrNoConfigFile) ||
		errors.Is(err, assistant.ErrNotConfigured) {
		return ExitConfigError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}

	var apiErr *assistant.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ExitAuthError
		case http.StatusNotFound:
			return ExitNotFoundError
		}
		return ExitNetworkError
	}

	switch {
	case errors.Is(err, assistant.ErrThreadCreate),
		errors.Is(err, assistant.ErrSubmit),
		errors.Is(err, assistant.ErrAction),
		errors.Is(err, assistant.ErrDownload):
		return ExitNetworkError
	}

	return ExitGeneralError
}

// DisplayError writes err to w in the user-facing form.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(w, "Error: %s\n", usageErr.Error())
		fmt.Fprintln(w, "Run 'citechat --help' for usage.")
		return
	}
	fmt.Fprintf(w, "Error: %s\n", session.UserMessage(err))
}
