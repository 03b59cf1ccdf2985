package api

import "fmt"

// ConfigError indicates a missing or malformed base endpoint. The operation
// was aborted before any request was attempted.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Reason
}

// AuthError indicates the session was not usable for the attempted call.
// State "loading" means the session is still undecided and the caller may
// retry shortly; "signed_out" means a fresh sign-in is required.
type AuthError struct {
	State string
}

func (e *AuthError) Error() string {
	if e.State == "loading" {
		return "auth: session still loading, retry shortly"
	}
	return "auth: signed out, sign-in required"
}

// Retryable reports whether waiting and retrying can resolve the error.
func (e *AuthError) Retryable() bool { return e.State == "loading" }

// TransportError wraps a request that failed before producing a response.
// The attempted URL is kept for diagnosability.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolMismatchError indicates an HTML-shaped body where structured data
// was expected. This is infrastructure or auth misrouting, not a business
// rejection, and the body is never parsed as data.
type ProtocolMismatchError struct {
	URL     string
	Snippet string
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("html response from %s (auth/routing/base misconfiguration)", e.URL)
}

// ServerRejection is a non-2xx response with a structured error body. The
// message is surfaced verbatim, truncated.
type ServerRejection struct {
	URL     string
	Status  int
	Message string
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("server rejected (%d): %s", e.Status, e.Message)
}

// ValidationError is a local precondition failure. It blocks the operation
// before any request is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
