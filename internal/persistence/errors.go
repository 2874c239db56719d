package persistence

import "fmt"

// PurgeError reports a failed best-effort purge of the mirror. Disable logs it
// and carries on.
type PurgeError struct {
	Reason string
	Err    error
}

func (e *PurgeError) Error() string {
	return fmt.Sprintf("persistence.purge.%s: %v", e.Reason, e.Err)
}

func (e *PurgeError) Unwrap() error {
	return e.Err
}
