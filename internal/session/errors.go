package session

import (
	"errors"
	"fmt"
)

// ErrSessionMismatch means the locally persisted session id no longer
// matches the session this engine was created for. The caller should
// navigate away instead of connecting a stale view.
var ErrSessionMismatch = errors.New("stored session id does not match this session")

// ErrClosed is returned by operations on an engine that is disconnecting
// or already torn down.
var ErrClosed = errors.New("session engine closed")

// ErrNotConnected is returned by outbound commands before Connect.
var ErrNotConnected = errors.New("session engine not connected")

// DeserializationError reports a malformed frame body on one topic. The
// frame is dropped; the subscription and all other topics keep running.
type DeserializationError struct {
	Topic string
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("malformed frame on %s: %v", e.Topic, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}
