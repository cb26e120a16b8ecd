// Package validator wraps go-playground/validator so that request schemas
// report only their first violated rule, with the message declared on the
// field's `msg` tag.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const messageTag = "msg"

// ValidationError describes the first field that failed validation.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validate: v}
}

// Validate checks s against its `validate` tags. Fields are checked in
// declaration order and only the first failure is reported.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	first := fieldErrs[0]
	return &ValidationError{
		Field:   first.Field(),
		Rule:    first.Tag(),
		Message: messageFor(s, first),
	}
}

func messageFor(s any, fe validator.FieldError) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if field, ok := t.FieldByName(fe.StructField()); ok {
			if msg := field.Tag.Get(messageTag); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
