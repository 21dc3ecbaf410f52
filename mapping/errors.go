package mapping

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/amor/amor-go/store"
)

// Error kinds. A MappingError unwraps to exactly one of these.
var (
	ErrInvalidStrategy        = errors.New("invalid strategy")
	ErrInvalidPath            = errors.New("invalid path")
	ErrPathExtractionMismatch = errors.New("path extraction mismatch")
	ErrMalformedRecord        = errors.New("malformed record")
	ErrAllocationExhausted    = errors.New("allocation exhausted")
	ErrKeyConflict            = store.ErrKeyConflict
	ErrDanglingReference      = store.ErrDanglingReference
)

// MappingError describes a failed directive or record
type MappingError struct {
	Kind      error
	Strategy  Strategy
	Directive string
	// Record is the zero-based record index, or -1 for directive-level errors
	Record int
	Key    string
	Cause  error
}

func (e *MappingError) Error() string {
	var b strings.Builder
	b.WriteString("directive")
	if e.Directive != "" {
		fmt.Fprintf(&b, " %q", e.Directive)
	}
	fmt.Fprintf(&b, " (strategy %d)", int(e.Strategy))
	if e.Record >= 0 {
		fmt.Fprintf(&b, " record %d", e.Record)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key %q", e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Cause != nil && e.Cause.Error() != e.Kind.Error() {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the error kind
func (e *MappingError) Unwrap() error {
	return e.Kind
}

// Fatal reports whether the error aborts a directive regardless of failFast
func (e *MappingError) Fatal() bool {
	return IsFatal(e.Kind)
}

// IsFatal reports whether an error kind always aborts the directive
func IsFatal(kind error) bool {
	switch {
	case errors.Is(kind, ErrKeyConflict),
		errors.Is(kind, ErrDanglingReference),
		errors.Is(kind, ErrMalformedRecord):
		return false
	default:
		return true
	}
}

func directiveError(d Directive, kind, cause error) *MappingError {
	return &MappingError{Kind: kind, Strategy: d.Strategy, Directive: d.Name, Record: -1, Cause: cause}
}

func recordError(d Directive, record int, key string, kind, cause error) *MappingError {
	return &MappingError{Kind: kind, Strategy: d.Strategy, Directive: d.Name, Record: record, Key: key, Cause: cause}
}

// classify maps a store error onto an error kind
func classify(err error) error {
	switch {
	case errors.Is(err, store.ErrKeyConflict):
		return ErrKeyConflict
	case errors.Is(err, store.ErrDanglingReference):
		return ErrDanglingReference
	default:
		return ErrMalformedRecord
	}
}
