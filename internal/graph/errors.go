package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error types for Microsoft Graph API responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("graph: unauthorised")

	// ErrForbidden indicates the application lacks permission for the requested resource.
	ErrForbidden = errors.New("graph: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("graph: not found")

	// ErrConflict indicates the resource already exists.
	ErrConflict = errors.New("graph: conflict")

	// ErrRateLimited indicates the request was throttled by Microsoft Graph.
	ErrRateLimited = errors.New("graph: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("graph: bad request")

	// ErrServerError indicates a server-side error from Microsoft Graph.
	ErrServerError = errors.New("graph: server error")

	// ErrUnexpectedStatus covers non-success statuses without a dedicated
	// sentinel, such as 423 locked or a redirect.
	ErrUnexpectedStatus = errors.New("graph: unexpected status")
)

// WrapError converts an HTTP status code to an appropriate error.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// apiError mirrors the JSON error envelope Graph returns on failures:
// {"error": {"code": "itemNotFound", "message": "..."}}.
type apiError struct {
	Inner struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError decodes a Graph error body and returns an error that wraps the
// sentinel for the status code. A body that is not the Graph error envelope
// still yields the sentinel error. Every non-success status produces a
// non-nil error, including codes WrapError has no sentinel for.
func StatusError(statusCode int, body []byte) error {
	if IsSuccess(statusCode) {
		return nil
	}
	sentinel := WrapError(statusCode)
	if sentinel == nil {
		sentinel = ErrUnexpectedStatus
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Inner.Code != "" {
		return fmt.Errorf("%s: %s: %w", apiErr.Inner.Code, apiErr.Inner.Message, sentinel)
	}
	return fmt.Errorf("status %d: %w", statusCode, sentinel)
}

// IsUnauthorised checks if the status code indicates an authentication failure.
func IsUnauthorised(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsRateLimited checks if the status code indicates rate limiting.
func IsRateLimited(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests
}

// IsNotFound checks if the status code indicates a missing resource.
func IsNotFound(statusCode int) bool {
	return statusCode == http.StatusNotFound
}

// IsSuccess checks if the status code indicates success. Graph item writes
// answer 200 on replacement and 201 on creation.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRetryable checks if the error is potentially transient and can be retried.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
