package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn: a required column is absent from the historical table.
	ErrMissingColumn = errors.New("missing column")
	// ErrTypeCoercion: a cell could not be parsed as the expected numeric type.
	ErrTypeCoercion = errors.New("type coercion failure")
	// ErrSchemaMismatch: an encoded vector does not align with the fitted schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrModelLoad: the model artifact is missing or unreadable.
	ErrModelLoad = errors.New("model load failure")
	// ErrNoTrainingData: nothing left to train on after flattening.
	ErrNoTrainingData = errors.New("no training data")
	// ErrPrediction: a single system could not be estimated.
	ErrPrediction = errors.New("prediction failure")
	// ErrOrderNotFound: the order source does not know the order number.
	ErrOrderNotFound = errors.New("order not found")
)

// RowError locates a non-fatal problem in the historical table.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e == nil {
		return ""
	}
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
