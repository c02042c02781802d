package history

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for history operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRecordExists indicates a download record with the same ID already exists.
	ErrRecordExists = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// Callers should typically retry the write.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it matches a known query error pattern.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrRecordExists, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
