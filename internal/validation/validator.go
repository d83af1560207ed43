// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pyrex41/medicare-portal-sub009/internal/replica"
)

// CodeValidation is the API error code for rejected input.
const CodeValidation = "VALIDATION_ERROR"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single rejected field.
type FieldError struct {
	field   string
	tag     string
	param   string
	value   any
	message string
}

// Field returns the JSON name of the field that failed.
func (e *FieldError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *FieldError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "100" for max=100.
func (e *FieldError) Param() string { return e.param }

// Value returns the rejected value.
func (e *FieldError) Value() any { return e.value }

func (e *FieldError) Error() string { return e.message }

// RequestError collects every field that failed for one request.
type RequestError struct {
	fields []FieldError
}

// Fields returns the individual failures.
func (re *RequestError) Fields() []FieldError { return re.fields }

func (re *RequestError) Error() string {
	if len(re.fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(re.fields))
	for i := range re.fields {
		messages[i] = re.fields[i].message
	}
	return strings.Join(messages, "; ")
}

// APIError is the code/message/details triple the HTTP layer renders.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// ToAPIError converts the failures into the API error shape.
func (re *RequestError) ToAPIError() *APIError {
	switch len(re.fields) {
	case 0:
		return &APIError{Code: CodeValidation, Message: "Validation failed"}
	case 1:
		fe := re.fields[0]
		return &APIError{
			Code:    CodeValidation,
			Message: fe.message,
			Details: map[string]any{"field": fe.field, "tag": fe.tag},
		}
	}

	fields := make([]map[string]any, len(re.fields))
	for i, fe := range re.fields {
		fields[i] = map[string]any{
			"field":   fe.field,
			"tag":     fe.tag,
			"message": fe.message,
		}
	}
	return &APIError{
		Code:    CodeValidation,
		Message: re.Error(),
		Details: map[string]any{"fields": fields},
	}
}

// Validator returns the shared validator, building it on first use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names so messages match the request body.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		mustRegister(v, "tenant_id", func(fl validator.FieldLevel) bool {
			return replica.ValidateTenantID(fl.Field().String()) == nil
		})
		mustRegister(v, "us_state", func(fl validator.FieldLevel) bool {
			_, ok := usStates[fl.Field().String()]
			return ok
		})

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct validates s, returning nil or a *RequestError.
func Struct(s any) *RequestError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &RequestError{fields: []FieldError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}

	out := make([]FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translate(fe),
		}
	}
	return &RequestError{fields: out}
}

// Var validates a single value against tag, using name in the message.
func Var(name string, value any, tag string) *RequestError {
	err := Validator().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &RequestError{fields: []FieldError{{field: name, tag: "unknown", message: err.Error()}}}
	}
	fe := fieldErrs[0]
	return &RequestError{fields: []FieldError{{
		field:   name,
		tag:     fe.Tag(),
		param:   fe.Param(),
		value:   value,
		message: message(name, fe),
	}}}
}

var plainMessages = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"numeric":   "%s must contain only digits",
	"number":    "%s must be a whole number",
	"alpha":     "%s must contain only letters",
	"uppercase": "%s must be upper case",
	"tenant_id": "%s must be 1-128 letters, digits, '-' or '_' and start with a letter or digit",
	"us_state":  "%s must be a two-letter US state code",
}

var paramMessages = map[string]string{
	"oneof":    "%s must be one of: %s",
	"len":      "%s must be exactly %s characters",
	"datetime": "%s must be a date in %s format",
	"gte":      "%s must be greater than or equal to %s",
	"lte":      "%s must be less than or equal to %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
}

func translate(fe validator.FieldError) string {
	return message(fe.Field(), fe)
}

func message(field string, fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()

	if tmpl, ok := plainMessages[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramMessages[tag]; ok {
		if tag == "datetime" && param == "2006-01-02" {
			param = "YYYY-MM-DD"
		}
		return fmt.Sprintf(tmpl, field, param)
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch tag {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, param, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, param, unit)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}

var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "DC": {},
	"FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {},
	"LA": {}, "ME": {}, "MD": {}, "MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {},
	"NE": {}, "NV": {}, "NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {},
	"OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {}, "TN": {}, "TX": {}, "UT": {},
	"VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {}, "WY": {},
}
