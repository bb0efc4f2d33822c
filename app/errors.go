package main

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per the error-kind taxonomy: I/O, DecodeFormat, Schema,
// Query, Unimplemented. Callers match these with errors.Is against the wrapped
// DatabaseError.
var (
	ErrUnexpectedEOF        = errors.New("unexpected end of file")
	ErrInvalidPageNumber    = errors.New("invalid page number")
	ErrInvalidPageType      = errors.New("invalid page type")
	ErrCellOffsetOutOfRange = errors.New("cell offset out of range")
	ErrInvalidVarint        = errors.New("invalid varint")
	ErrRecordHeaderOverrun  = errors.New("record header overrun")
	ErrInvalidSerialType    = errors.New("invalid serial type")
	ErrInvalidUTF8          = errors.New("invalid utf-8 in text column")
	ErrMissingRightChild    = errors.New("interior page missing right-most child")
	ErrNonMonotonicRowid    = errors.New("cell rowids are not in ascending order")

	ErrMalformedSchemaRow = errors.New("malformed schema row")
	ErrUnparseableSQL     = errors.New("unparseable CREATE statement")
	ErrTableNotFound      = errors.New("table not found")
	ErrIndexNotFound      = errors.New("index not found")

	ErrUnknownCommand   = errors.New("unknown command")
	ErrColumnNotFound   = errors.New("unknown column")
	ErrUnsupportedQuery = errors.New("unsupported SQL shape")

	ErrUnimplementedSerialType = errors.New("unimplemented serial type: 48-bit integer")
)

// DatabaseError wraps a sentinel error with the operation that produced it and
// optional context, so failures bubble up to the CLI boundary with enough
// detail to render a useful message without leaking internal stack traces.
type DatabaseError struct {
	Operation string
	Err       error
	Context   map[string]any
}

func NewDatabaseError(operation string, err error, context map[string]any) *DatabaseError {
	return &DatabaseError{Operation: operation, Err: err, Context: context}
}

func (e *DatabaseError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: %v (%v)", e.Operation, e.Err, e.Context)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}
