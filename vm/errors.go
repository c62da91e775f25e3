package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionChanged signals the plan must be recompiled since the catalog
	// has changed since the statement was prepared.
	ErrVersionChanged      = errors.New("statement was compiled with an out of date catalog")
	ErrTableNotFound       = errors.New("table not found")
	ErrRuntimeType         = errors.New("type error")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrIntegerOverflow     = errors.New("integer overflow")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrBindParameter       = errors.New("cannot bind parameter")
)

// ExecutionError is returned for failures while running a plan. Kind is one of
// the package errors and can be matched with errors.Is.
type ExecutionError struct {
	Kind   error
	Detail string
}

func (e *ExecutionError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ExecutionError) Unwrap() error {
	return e.Kind
}

func execErr(kind error, format string, a ...any) *ExecutionError {
	return &ExecutionError{Kind: kind, Detail: fmt.Sprintf(format, a...)}
}
