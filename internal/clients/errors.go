// Package clients contains HTTP clients for the external vendors the
// service orchestrates: custody/signing, chain RPC, off-ramp, LLM, chat,
// PDF rendering, and the event bus.
package clients

import (
	"fmt"
	"strings"
)

// TransientError marks a vendor failure that is safe to retry after
// rebuilding the request, such as an expired Solana blockhash. Callers
// decide retry eligibility with errors.As, never by matching message text.
type TransientError struct {
	Reason string
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transient vendor error: %s", e.Reason)
	}
	return fmt.Sprintf("transient vendor error: %s: %v", e.Reason, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError marks a vendor rejection that retrying cannot fix: invalid
// request, insufficient funds, bad address.
type RejectedError struct {
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vendor rejected request: %s", e.Reason)
	}
	return fmt.Sprintf("vendor rejected request: %s: %v", e.Reason, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// HTTPStatusError captures a non-2xx upstream response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// blockhashSignatures are the vendor message fragments that identify the
// expired-blockhash error class. This is the single place the raw vendor
// text is inspected; everything downstream sees *TransientError.
var blockhashSignatures = []string{
	"blockhash not found",
	"block height exceeded",
	"blockhash expired",
}

// classifyVendorError converts a raw vendor error message into the typed
// taxonomy. Anything not recognized as transient is a rejection.
func classifyVendorError(message string, err error) error {
	lower := strings.ToLower(message)
	for _, sig := range blockhashSignatures {
		if strings.Contains(lower, sig) {
			return &TransientError{Reason: message, Err: err}
		}
	}
	return &RejectedError{Reason: message, Err: err}
}
