package ndjson

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedFrame is returned when the stream ends in the middle of a frame.
	ErrTruncatedFrame = errors.New("ndjson: stream ended mid-frame")
	// ErrSinkClosed means the peer stopped reading. It is not a failure.
	ErrSinkClosed = errors.New("ndjson: sink closed")
)

// TransportError wraps a failure of the underlying byte stream. Terminal.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("ndjson: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is raised before any frame when the response is not 2xx. Terminal.
type HTTPStatusError struct {
	Code   int
	Status string
}

func (e *HTTPStatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("ndjson: unexpected response status %s", e.Status)
	}
	return fmt.Sprintf("ndjson: unexpected response status %d", e.Code)
}

// ModeMismatchError is raised when the producer announces a framing mode
// different from the one the consumer was configured for. Terminal.
type ModeMismatchError struct {
	Want Mode
	Got  string
}

func (e *ModeMismatchError) Error() string {
	return fmt.Sprintf("ndjson: expected %s stream, producer sent %q", e.Want, e.Got)
}

// InvalidUTF8Error reports a frame that is not valid UTF-8.
type InvalidUTF8Error struct {
	At int
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("ndjson: frame %d is not valid UTF-8", e.At)
}

// DecodeError reports a frame that could not be decoded into a record.
type DecodeError struct {
	At  int
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("ndjson: decode frame %d: %v", e.At, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// FrameTooLargeError is raised when a frame outgrows the reframer buffer cap. Terminal.
type FrameTooLargeError struct {
	At    int
	Limit int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("ndjson: frame %d exceeds %d bytes", e.At, e.Limit)
}

// SerializeError reports a record the producer failed to encode.
// The response body is truncated after it.
type SerializeError struct {
	At  int
	Err error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("ndjson: serialize record %d: %v", e.At, e.Err)
}
func (e *SerializeError) Unwrap() error { return e.Err }

// SourceError reports a failure of the record source feeding the producer.
type SourceError struct {
	At  int
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("ndjson: source record %d: %v", e.At, e.Err) }
func (e *SourceError) Unwrap() error { return e.Err }

// IsTerminal reports whether err ends a decoded sequence.
// Per-record errors (InvalidUTF8Error, DecodeError) are not terminal.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var (
		utf8Err   *InvalidUTF8Error
		decodeErr *DecodeError
	)
	if errors.As(err, &utf8Err) || errors.As(err, &decodeErr) {
		return false
	}
	return true
}
