package jenkins

import (
	"errors"
	"fmt"
)

// ErrMalformedBuildURL indicates the upstream returned a build reference that
// could not be parsed even after space percent-encoding.
var ErrMalformedBuildURL = errors.New("malformed build reference from upstream")

// ErrSpecNotFound indicates a job's config.xml carries no <spec> element.
var ErrSpecNotFound = errors.New("no schedule spec found in job config")

// RetrievalError reports a request that failed at the transport level on
// every attempt (DNS, connect, timeout). It is alertable per job, never
// fatal to the process.
type RetrievalError struct {
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// UpstreamStatusError reports a non-2xx final response from the upstream API.
type UpstreamStatusError struct {
	Status int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}
