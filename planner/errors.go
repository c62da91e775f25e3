package planner

import (
	"errors"
	"fmt"
	"strings"
)

// Analysis error kinds.
var (
	ErrUnknownTable        = errors.New("unknown table")
	ErrUnknownColumn       = errors.New("unknown column")
	ErrAmbiguousColumn     = errors.New("ambiguous column")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrWildcardWithoutFrom = errors.New("wildcard without table")
	ErrTableExists         = errors.New("table exists")
	ErrDuplicateColumn     = errors.New("duplicate column")
	ErrValueCount          = errors.New("values list did not match columns list")
	ErrMultiplePrimaryKeys = errors.New("more than one primary key specified")
	ErrUnknownFunction     = errors.New("unknown function")
	ErrMisusedAggregate    = errors.New("misused aggregate")
)

// Preparation error kinds.
var (
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrSchemaChanged       = errors.New("schema changed")
)

// AnalysisError is returned by Analyze. Kind is one of the analysis error
// kinds and is matched with errors.Is.
type AnalysisError struct {
	Kind error
	// Name is the table, column or function the error is about.
	Name string
	// Table is set for column errors.
	Table string
	// Expected and Found describe type mismatches.
	Expected string
	Found    string
}

func (e *AnalysisError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.Kind.Error())
	if e.Name != "" {
		sb.WriteString(" ")
		if e.Table != "" {
			sb.WriteString(e.Table + ".")
		}
		sb.WriteString(e.Name)
	}
	if e.Expected != "" || e.Found != "" {
		fmt.Fprintf(&sb, ": expected %s but found %s", e.Expected, e.Found)
	}
	return sb.String()
}

func (e *AnalysisError) Unwrap() error {
	return e.Kind
}

// PrepareError is returned by Prepare when the catalog no longer agrees with
// an analyzed statement.
type PrepareError struct {
	Kind  error
	Table string
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Table)
}

func (e *PrepareError) Unwrap() error {
	return e.Kind
}
