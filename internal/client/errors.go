package client

import "fmt"

// FatalAuthError means the adapter could not establish a session. Returned
// from Authenticate and New; the entry point exits on it.
type FatalAuthError struct {
	Client string
	Err    error
}

func (e *FatalAuthError) Error() string {
	return fmt.Sprintf("failed to authenticate to %s API: %v", e.Client, e.Err)
}

func (e *FatalAuthError) Unwrap() error { return e.Err }

// BackendError is an error reported by the backend inside an otherwise
// successful response.
type BackendError struct {
	Method  string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend error: %s", e.Method, e.Message)
}

// DecodeError means a response body could not be decoded into the shape the
// adapter expects.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode " + e.What
	}
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
