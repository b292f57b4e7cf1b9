package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Status classifies the outcome of a provider call.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusPermissionDenied
	StatusConnectionFailed
	StatusUnimplemented
	StatusAlreadyExists
	StatusCancelled
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not-found"
	case StatusPermissionDenied:
		return "permission-denied"
	case StatusConnectionFailed:
		return "connection-failed"
	case StatusUnimplemented:
		return "unimplemented"
	case StatusAlreadyExists:
		return "already-exists"
	case StatusCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

var (
	ErrUnimplemented = errors.New("operation not supported by provider")
	ErrNotDirectory  = errors.New("not a directory")
	ErrInvalidPath   = errors.New("invalid path")
)

// Error is a classified provider failure.
type Error struct {
	Op        string
	Path      string
	Status    Status
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Status.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a status. A nil err yields nil.
func NewError(op, path string, status Status, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Status: status, Err: err}
}

// Unimplemented is the error providers return for methods they do not carry.
func Unimplemented(op string) error {
	return &Error{Op: op, Status: StatusUnimplemented, Err: ErrUnimplemented}
}

// StatusOf classifies err. nil is StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	case errors.Is(err, fs.ErrNotExist):
		return StatusNotFound
	case errors.Is(err, fs.ErrPermission):
		return StatusPermissionDenied
	case errors.Is(err, fs.ErrExist):
		return StatusAlreadyExists
	case errors.Is(err, ErrUnimplemented):
		return StatusUnimplemented
	}
	return StatusError
}

// IsRetryable reports whether err was flagged retryable by its provider.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// Retryable marks err as retryable, classifying it first when needed.
func Retryable(op, path string, status Status, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Status: status, Retryable: true, Err: err}
}

// Classify wraps a raw error with its derived status, leaving *Error values
// untouched.
func Classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Path: path, Status: StatusOf(err), Err: err}
}

// Errorf builds a StatusError failure.
func Errorf(op, path, format string, args ...any) error {
	return &Error{Op: op, Path: path, Status: StatusError, Err: fmt.Errorf(format, args...)}
}
