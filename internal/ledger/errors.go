package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a malformed or missing required field. It is always
// raised before a transaction starts, so nothing has been written when the
// caller sees one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CrossAccountError reports a batch trash/restore that spans more than one
// account. The enclosing transaction is rolled back in full.
type CrossAccountError struct {
	Accounts []string
}

func (e *CrossAccountError) Error() string {
	return fmt.Sprintf("operation spans %d accounts (%s); a batch may touch exactly one",
		len(e.Accounts), strings.Join(e.Accounts, ", "))
}

// ConstraintError reports a referential-integrity violation, such as a trade
// pointing at an account that does not exist. Retrying without fixing the
// data will fail again.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string {
	return e.Reason
}

// TransientError wraps a connectivity or lock-timeout failure. Every write in
// this package is idempotent, so callers may retry these safely.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err is safe to retry blindly.
func Retryable(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// transientMarkers are driver-level message fragments that indicate a
// connectivity or locking failure rather than a data problem. Covers the
// sqlite and postgres drivers this service runs on.
var transientMarkers = []string{
	"database is locked",
	"database table is locked",
	"lock timeout",
	"deadlock",
	"connection refused",
	"connection reset",
	"broken pipe",
	"too many connections",
}

// classifyStorageErr wraps retryable driver failures in TransientError and
// returns everything else unchanged, so the ledger's own typed errors pass
// through intact.
func classifyStorageErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return &TransientError{Err: err}
		}
	}
	return err
}
