package etlerr

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is a stream-level failure; extraction aborts.
	ErrMalformedInput = errors.New("malformed input stream")
	// ErrConstraintMissing means a required uniqueness constraint is absent;
	// loading must not start.
	ErrConstraintMissing = errors.New("uniqueness constraint missing")
	// ErrUnknownOntologyRef is a soft failure; the edge is omitted.
	ErrUnknownOntologyRef = errors.New("unknown ontology reference")
)

// DecompositionError marks one record that could not be keyed. The record is
// excluded from every output table; the stream continues.
type DecompositionError struct {
	RecordIndex int
	Field       string
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("record %d: missing required field %q", e.RecordIndex, e.Field)
}

// BatchError wraps a batch that failed after exhausting its retries.
type BatchError struct {
	Table string
	Batch int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("table %s: batch %d failed: %v", e.Table, e.Batch, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
