package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientBackendError is safe to retry: timeouts, connection failures, rate limits and 5xx.
type TransientBackendError struct {
	StatusCode int
	Err        error
}

func (e *TransientBackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("generation backend unavailable (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation backend unavailable: %v", e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// PolicyRejectionError means the backend refused the prompt on content-policy grounds.
type PolicyRejectionError struct {
	Message string
	Err     error
}

func (e *PolicyRejectionError) Error() string {
	return "prompt rejected by content policy: " + e.Message
}

func (e *PolicyRejectionError) Unwrap() error { return e.Err }

type MalformedOutputError struct {
	Raw string
}

func (e *MalformedOutputError) Error() string {
	return "model did not return valid JSON: " + e.Snippet()
}

// Snippet returns at most 160 characters of the raw output.
func (e *MalformedOutputError) Snippet() string {
	s := strings.TrimSpace(e.Raw)
	if s == "" {
		return "[empty]"
	}
	r := []rune(s)
	if len(r) > 160 {
		return string(r[:160]) + "..."
	}
	return s
}

type EmptyOutputError struct {
	Model string
}

func (e *EmptyOutputError) Error() string {
	if e.Model == "" {
		return "generation returned empty content"
	}
	return "generation returned empty content from " + e.Model
}

var policyKeywords = []string{
	"invalid prompt",
	"safety",
	"content policy",
	"content_policy",
	"content management policy",
	"filtered",
}

func isPolicyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range policyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isTransientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// classifyTransport maps untyped errors to the package error types.
// Errors a provider already classified pass through unchanged.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var transient *TransientBackendError
	var policy *PolicyRejectionError
	var malformed *MalformedOutputError
	var empty *EmptyOutputError
	if errors.As(err, &transient) || errors.As(err, &policy) || errors.As(err, &malformed) || errors.As(err, &empty) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientBackendError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientBackendError{Err: err}
	}
	return err
}
