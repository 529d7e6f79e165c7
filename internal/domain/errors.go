package domain

import (
	"fmt"
	"strings"
)

// DataError reports malformed input: missing columns or unusable coordinates.
type DataError struct {
	Dataset string
	Missing []string
	Reason  string
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString("data error")
	if e.Dataset != "" {
		b.WriteString(" in ")
		b.WriteString(e.Dataset)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing columns [%s]", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// InsufficientDataError reports that no rows survived cleaning.
type InsufficientDataError struct {
	Dropped int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: no rows left after dropping %d incomplete rows", e.Dropped)
}

// InsufficientClassesError reports fewer than two distinct disaster types.
type InsufficientClassesError struct {
	Classes []string
}

func (e *InsufficientClassesError) Error() string {
	return fmt.Sprintf("insufficient classes for classification: need at least 2, got %d %v", len(e.Classes), e.Classes)
}

// MissingParameterError reports an incomplete or non-numeric prediction request.
type MissingParameterError struct {
	Params []string
}

func (e *MissingParameterError) Error() string {
	return "missing required parameters: " + strings.Join(e.Params, ", ")
}

// PersistenceError reports an artifact save or load failure.
type PersistenceError struct {
	Op       string // "save" or "load"
	Artifact string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("%s model bundle: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s model bundle artifact %s: %v", e.Op, e.Artifact, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// EmptyResultError reports that the spatial join produced no matches.
type EmptyResultError struct {
	Candidates    int
	MaxDistanceKm float64
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no disaster records matched a weather record within %.1f km (%d candidates)", e.MaxDistanceKm, e.Candidates)
}
