package counter

import (
	"errors"
	"fmt"
)

// ConfigurationError reports missing or invalid store settings. It is
// raised before any store call is attempted.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// StoreOperationError wraps any failure of a call against the table store.
type StoreOperationError struct {
	Op  string
	Err error
}

func (e *StoreOperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreOperationError) Unwrap() error {
	return e.Err
}

// ErrorKind names the kind of err for logs and metrics.
func ErrorKind(err error) string {
	var ce *ConfigurationError
	var se *StoreOperationError
	switch {
	case errors.As(err, &ce):
		return "configuration"
	case errors.As(err, &se):
		return "store"
	default:
		return "internal"
	}
}
