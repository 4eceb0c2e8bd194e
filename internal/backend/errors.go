package backend

import (
	"errors"
	"fmt"
)

// APIError represents a non-success HTTP response from status-backend.
type APIError struct {
	Method     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status-backend %s: HTTP %d: %s", e.Method, e.StatusCode, e.Body)
}

// RPCError represents an application-level error returned inside a
// JSON-RPC response envelope.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("status-backend RPC %s: %s (%d)", e.Method, e.Message, e.Code)
}

// IsAPIError checks if the error is a non-success HTTP response.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// IsRPCError checks if the error is a backend-reported RPC error.
func IsRPCError(err error) bool {
	var e *RPCError
	return errors.As(err, &e)
}
