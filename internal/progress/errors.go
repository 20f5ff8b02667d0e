package progress

import (
	"fmt"
	"strings"
)

// ResetError reports the keys a reset could not erase. The in-memory state
// is reset regardless.
type ResetError struct {
	FailedKeys []string
	Err        error
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("reset progress: could not erase %s: %v", strings.Join(e.FailedKeys, ", "), e.Err)
}

func (e *ResetError) Unwrap() error {
	return e.Err
}
