package domain

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded marks the wall-clock ceiling (or a tier's poll ceiling)
// being reached. It degrades the fetch tier or aborts the pipeline between
// stages; it never interrupts an in-flight remote call.
var ErrBudgetExceeded = errors.New("time budget exceeded")

// ErrNoData marks an empty mapping or an empty metrics result after all
// fallbacks, a soft pipeline failure rather than a crash.
var ErrNoData = errors.New("no data available")

// RemoteError wraps a failure reported by one of the warehouses.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
