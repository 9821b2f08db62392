// Package apperr defines the error kinds shared by the store, archive and merge layers.
package apperr

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArchive  = errors.New("invalid archive")
	ErrIOFailure       = errors.New("io failure")
	ErrConflict        = errors.New("conflict")
)

// Error carries a kind (one of the sentinels above) together with the
// operation and path that failed.
type Error struct {
	Kind error
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if s == "" {
		return e.Kind.Error()
	}
	return s
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a message.
func New(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind, op and path to err. A nil err yields nil.
func Wrap(kind error, op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IO classifies a filesystem error: missing paths become ErrNotFound,
// errors that already carry a kind are returned unchanged, everything else
// is ErrIOFailure.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Wrap(ErrNotFound, op, path, err)
	}
	return Wrap(ErrIOFailure, op, path, err)
}

// KindOf returns the kind of err, or ErrIOFailure when err carries none.
func KindOf(err error) error {
	for _, k := range []error{ErrInvalidArgument, ErrNotFound, ErrInvalidArchive, ErrConflict, ErrIOFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrIOFailure
}
