package helper

import "fmt"

// Error attaches the operation that failed to the underlying error.
type Error struct {
	Operation string
	Original  error
}

// NewError wraps err with the name of the operation that failed.
// A nil err yields a nil error.
func NewError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Operation: operation,
		Original:  err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Original)
}

func (e *Error) Unwrap() error {
	return e.Original
}
