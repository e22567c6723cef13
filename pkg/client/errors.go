package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local rate limit blocks.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures, including timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// GenericFailureMessage is shown when the API gave no usable message.
const GenericFailureMessage = "Something went wrong, please try again"

var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the shared rate limit budget is critical.
	ErrRateLimited = errors.New("request blocked: rate limit critical")

	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("invalid client config")
)

// APIError is a failed shop API request.
type APIError struct {
	StatusCode int
	Class      ErrorClass

	// Message is the server supplied {"message": ...}, if any.
	Message string

	// Status is the HTTP status line, e.g. "404 Not Found".
	Status string

	Err error
}

func (e *APIError) Error() string {
	text := e.Message
	if text == "" {
		text = e.Status
	}
	if e.Err != nil {
		return fmt.Sprintf("shop api %s error (status %d): %s: %v", e.Class, e.StatusCode, text, e.Err)
	}
	return fmt.Sprintf("shop api %s error (status %d): %s", e.Class, e.StatusCode, text)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show an operator for err: the message
// supplied by the API when there is one, GenericFailureMessage otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericFailureMessage
}

// IsClass reports whether err is an *APIError of the given class.
func IsClass(err error, class ErrorClass) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == class
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if a failure class is transient.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// parseMessage extracts a human readable message from an error body.
// It understands {"message": ...}, {"error": ...} and a bare JSON string.
func parseMessage(body []byte) string {
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if obj.Message != "" {
			return strings.TrimSpace(obj.Message)
		}
		return strings.TrimSpace(obj.Error)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
