package receipt

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors below match them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("receipt not found")
	ErrIngestion  = errors.New("ingestion failed")
)

// FieldProblem names one offending field
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every field that blocked an operation
type ValidationError struct {
	ID       string
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+" "+p.Message)
	}
	if e.ID != "" {
		return fmt.Sprintf("validation failed for receipt %s: %s", e.ID, strings.Join(parts, "; "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Fields returns the names of the offending fields
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		fields = append(fields, p.Field)
	}
	return fields
}

// NotFoundError is returned for an unknown or deleted receipt id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return "receipt not found: " + e.ID }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IngestionError wraps an oracle or storage failure during creation
type IngestionError struct {
	Filename string
	Err      error
}

func (e *IngestionError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("ingestion failed: %v", e.Err)
	}
	return fmt.Sprintf("ingestion failed for %s: %v", e.Filename, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }

// problems collects field problems while a change is checked
type problems []FieldProblem

func (p *problems) add(field, format string, args ...any) {
	*p = append(*p, FieldProblem{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (p problems) err(id string) error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{ID: id, Problems: p}
}
