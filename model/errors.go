package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrQueryTooLong = errors.New("query exceeds maximum length")
)

// UnknownNodeError is returned when an edge references a node that does not exist.
type UnknownNodeError struct {
	NodeID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.NodeID)
}

// BackendUnavailableError wraps a failure of a retrieval collaborator.
type BackendUnavailableError struct {
	Channel Strategy
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Channel, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// MalformedQueryError rejects a query before any channel is dispatched.
type MalformedQueryError struct {
	Reason string
	Err    error
}

func (e *MalformedQueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed query: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed query: %s", e.Reason)
}

func (e *MalformedQueryError) Unwrap() error {
	return e.Err
}

// ChannelTimeoutError is returned when a channel does not answer within its budget.
type ChannelTimeoutError struct {
	Channel Strategy
	Timeout time.Duration
}

func (e *ChannelTimeoutError) Error() string {
	return fmt.Sprintf("%s channel timed out after %s", e.Channel, e.Timeout)
}

// IsMalformedQuery reports whether err is a client side query error.
func IsMalformedQuery(err error) bool {
	var target *MalformedQueryError
	return errors.As(err, &target)
}
