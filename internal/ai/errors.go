package ai

import "fmt"

// TransportError means the backend could not be reached, timed out, refused the
// call through the circuit breaker, or answered with a non-success status.
type TransportError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d", e.Backend, e.StatusCode)
	}
	return fmt.Sprintf("calling %s: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseShapeError means the backend answered but the body lacked the expected fields.
type ResponseShapeError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *ResponseShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s response %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s response %s", e.Backend, e.Reason)
}

func (e *ResponseShapeError) Unwrap() error { return e.Err }
