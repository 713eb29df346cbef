// Package lerrors is a unified errors package for reading interpreter memory so
// that failures can be reported and handled in a uniform way by every layer.
package lerrors

import (
	"errors"
	"fmt"
)

type (
	// ErrorKind is an enum to describe where the error originates from.
	ErrorKind int
	// Error captures all failures while inspecting a target. It distinguishes between
	// unreadable memory, classification mismatches and inconsistent snapshots.
	Error struct {
		Kind ErrorKind
		Addr uint64
		Err  error
	}
)

const (
	// ReadFailure is an error raised when target memory could not be read.
	ReadFailure ErrorKind = iota
	// TypeMismatch is an error raised when an object tag is not the expected one.
	TypeMismatch
	// NotManagedFrame is an error raised when bytecode state is requested from a C frame.
	NotManagedFrame
	// CorruptSnapshot is an error raised when a linked structure exceeds its bound.
	CorruptSnapshot
	// LayoutErr is an error raised from an invalid struct layout description.
	LayoutErr
)

var kindNames = map[ErrorKind]string{
	ReadFailure:     "read failure",
	TypeMismatch:    "type mismatch",
	NotManagedFrame: "not a Lua frame",
	CorruptSnapshot: "corrupt snapshot",
	LayoutErr:       "layout error",
}

func (kind ErrorKind) String() string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("error kind %d", int(kind))
}

// New creates an error of the given kind at addr.
func New(kind ErrorKind, addr uint64, format string, args ...any) *Error {
	return &Error{Kind: kind, Addr: addr, Err: fmt.Errorf(format, args...)}
}

// Wrap turns err into an error of the given kind at addr.
func Wrap(kind ErrorKind, addr uint64, err error) *Error {
	return &Error{Kind: kind, Addr: addr, Err: err}
}

func (err *Error) Error() string {
	switch err.Kind {
	case ReadFailure, TypeMismatch, CorruptSnapshot:
		return fmt.Sprintf("%v at 0x%x: %v", err.Kind, err.Addr, err.Err)
	case NotManagedFrame:
		return fmt.Sprintf("%v (ci 0x%x): %v", err.Kind, err.Addr, err.Err)
	default:
		return fmt.Sprintf("%v: %v", err.Kind, err.Err)
	}
}

func (err *Error) Unwrap() error { return err.Err }

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var lerr *Error
	return errors.As(err, &lerr) && lerr.Kind == kind
}
