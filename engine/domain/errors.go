package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind int

const (
	KindUnknown    Kind = iota
	KindValidation      // missing or empty required input
	KindEmbedding       // text could not be embedded
	KindIndexWrite      // vector backend rejected or failed a write
	KindIndexRead       // vector backend failed a read or search
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEmbedding:
		return "embedding"
	case KindIndexWrite:
		return "index_write"
	case KindIndexRead:
		return "index_read"
	default:
		return "unknown"
	}
}

// Sentinel errors for validation failures.
var (
	ErrRequired   = errors.New("field is required")
	ErrEmptyBatch = errors.New("batch is empty")
)

// Error carries a Kind together with the operation and field that failed.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidationError reports a missing or invalid field.
func NewValidationError(op, field string, wrapped error) *Error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Err: wrapped}
}

// Wrap attaches kind and op to err. A nil err stays nil, and an err that
// already carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
