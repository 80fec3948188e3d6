package marketdata

import "fmt"

// AuthError means cookie+crumb negotiation failed. Collection endpoints
// react by falling back to the unauthenticated tier; it is never fatal on
// its own.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "credential negotiation failed: " + e.Reason
}

// UpstreamError is a non-2xx answer from a provider. It exposes the status
// so the retry policy can distinguish rate limiting and server faults from
// plain client errors.
type UpstreamError struct {
	Endpoint string
	Status   int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Status)
}

// StatusCode implements retry.StatusCoder.
func (e *UpstreamError) StatusCode() int { return e.Status }

// ParseError means a provider answered 2xx with a body that does not match
// the expected shape. These surfaces are undocumented and change silently,
// so parse failures are a first-class, retryable outcome.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected response shape from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
