package session

import (
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned by operations attempted after Dispose.
	ErrDisposed = errors.New("session manager is disposed")

	// ErrNoKernelToRestart is returned by Restart when there is neither a
	// live kernel nor a remembered kernel name to start from.
	ErrNoKernelToRestart = errors.New("no kernel to restart")
)

// StartError wraps a gateway failure while starting or connecting a kernel.
// It is reported through the error collaborator and returned to the caller
// that triggered the operation.
type StartError struct {
	Path string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start kernel session for %q: %v", e.Path, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }
