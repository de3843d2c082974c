// Package failure classifies domain errors so transports can map them
// without knowing every sentinel.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the caller-facing class of an error.
type Kind int

const (
	// Internal is anything unclassified.
	Internal Kind = iota
	// Validation covers rejected input and invalid state transitions.
	Validation
	// NotFound covers lookups of unknown entities.
	NotFound
	// Conflict covers uniqueness and cross-entity invariant violations.
	Conflict
	// Unavailable covers external dependency failures.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Sentinel is a comparable domain error carrying its kind and a stable code.
type Sentinel struct {
	kind Kind
	code string
	msg  string
}

// New declares a sentinel.
func New(kind Kind, code, msg string) *Sentinel {
	return &Sentinel{kind: kind, code: code, msg: msg}
}

func (s *Sentinel) Error() string { return s.msg }

// Kind returns the sentinel's class.
func (s *Sentinel) Kind() Kind { return s.kind }

// Code returns the stable machine-readable code.
func (s *Sentinel) Code() string { return s.code }

// Error annotates an error with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// Wrapf wraps sentinel with a formatted detail message.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}

type classified interface {
	Kind() Kind
	Code() string
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var c classified
	if errors.As(err, &c) {
		return c.Kind()
	}
	return Internal
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var c classified
	if errors.As(err, &c) {
		return c.Code()
	}
	return "internal"
}
