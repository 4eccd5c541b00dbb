// Package validation wraps go-playground/validator with a shared instance and
// readable error messages.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed constraint.
type FieldError struct {
	Namespace string
	Tag       string
	Param     string
	Message   string
}

// ValidationError aggregates every failed constraint of one value.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.Namespace, f.Message))
	}
	return strings.Join(msgs, "; ")
}

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates s and returns nil or a *ValidationError.
func ValidateStruct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: []FieldError{{Namespace: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Namespace: fe.Namespace(),
			Tag:       fe.Tag(),
			Param:     fe.Param(),
			Message:   translate(fe),
		})
	}
	return out
}

var messages = map[string]string{
	"required": "is required",
	"gte":      "must be greater than or equal to %s",
	"lte":      "must be less than or equal to %s",
	"min":      "must contain at least %s item(s)",
	"oneof":    "must be one of: %s",
}

func translate(fe validator.FieldError) string {
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, fe.Param())
	}
	return tmpl
}
