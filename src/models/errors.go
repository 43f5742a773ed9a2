package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrNotFound            = errors.New("transaction not found")
	ErrProviderUnavailable = errors.New("market data provider unavailable")
	ErrStorage             = errors.New("ledger storage failure")
)

// Violation is a single broken constraint on a single field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a record, not just the first.
// It matches ErrValidationFailed with errors.Is.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Add(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends other's violations with every field prefixed by prefix.
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, v := range other.Violations {
		e.Violations = append(e.Violations, Violation{Field: prefix + v.Field, Message: v.Message})
	}
}

// Err returns nil when nothing was recorded, avoiding a typed-nil error.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Violations) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// StorageError reports a failed read or write of the ledger backend.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// RecordError describes one persisted record that could not be decoded and was
// skipped while loading the ledger.
type RecordError struct {
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (e RecordError) Error() string { return fmt.Sprintf("corrupt record %s: %v", e.Source, e.Err) }
func (e RecordError) Unwrap() error { return e.Err }

func (e RecordError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Source string `json:"source"`
		Error  string `json:"error"`
	}{e.Source, msg})
}
