package layer

import (
	"fmt"
	"strings"
)

// ValidationError contains every field-level problem found on a layer
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	if len(ve.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", ve.Errors[0].Field, ve.Errors[0].Message)
	}
	return fmt.Sprintf("validation failed: %d errors", len(ve.Errors))
}

// Validate checks required fields and the name format. Name uniqueness is
// enforced by storage and is not checked here.
func (l *Layer) Validate() error {
	ve := &ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"category", l.Category},
		{"description", l.Description},
		{"name", l.Name},
		{"organization", l.Organization},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			ve.Errors = append(ve.Errors, FieldError{Field: r.field, Message: "is not present"})
		}
	}

	if l.Name != "" && !NamePattern.MatchString(l.Name) {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is invalid"})
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
