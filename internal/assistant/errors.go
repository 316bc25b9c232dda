// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jeranaias/citechat/internal/util"
)

// Error variables for relay failures. Each operation wraps its failures in
// the matching sentinel so callers can classify them with errors.Is.
var (
	// ErrNotConfigured indicates the relay URL is not set.
	ErrNotConfigured = errors.New("assistant relay not configured")

	// ErrThreadCreate wraps failures of thread creation.
	ErrThreadCreate = errors.New("create thread failed")

	// ErrSubmit wraps failures of message submission.
	ErrSubmit = errors.New("send message failed")

	// ErrAction wraps failures of tool-output submission.
	ErrAction = errors.New("submit tool outputs failed")

	// ErrDownload wraps failures of file retrieval.
	ErrDownload = errors.New("download file failed")

	// ErrFrameTooLarge indicates a single stream line exceeded MaxFrameSize.
	ErrFrameTooLarge = errors.New("stream frame too large")
)

// APIError represents a non-success response from the relay.
type APIError struct {
	Op      string
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: relay error (HTTP %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: relay error (HTTP %d)", e.Op, e.Status)
}

// RunError describes an assistant run that ended without completing.
type RunError struct {
	RunID   string
	Status  string
	Code    string
	Message string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "run " + e.Status
	}
	if e.Code != "" {
		return fmt.Sprintf("assistant run %s [%s]: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("assistant run %s: %s", e.Status, msg)
}

// errorBody matches both {"error":"text"} and {"error":{"message":"text"}}.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// handleErrorResponse builds an APIError from a non-2xx response.
func handleErrorResponse(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	apiErr := &APIError{Op: op, Status: resp.StatusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Error) > 0 {
		var text string
		if json.Unmarshal(eb.Error, &text) == nil {
			apiErr.Message = text
			return apiErr
		}
		var obj struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(eb.Error, &obj) == nil && obj.Message != "" {
			apiErr.Message = obj.Message
			return apiErr
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "<") {
		apiErr.Message = util.TruncateRunes(text, 200)
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
