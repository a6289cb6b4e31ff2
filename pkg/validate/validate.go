// Package validate wraps github.com/go-playground/validator/v10 with the
// struct-tag validation idiom used throughout this repo: JSON field names
// (or YAML keys, for structs that carry only yaml tags) in error messages
// instead of Go field names, and a map-shaped error summary for logging.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var instance *validator.Validate

func init() {
	instance = validator.New(validator.WithRequiredStructEnabled())
	instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		}
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Struct runs struct-level validation using the `validate` tags on s.
func Struct(s any) error {
	return instance.Struct(s)
}

// FieldErrors converts a validator.ValidationErrors into a map of JSON
// field name (or YAML key) to human-readable message, for logging against a specific
// command or config entry.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, e := range ve {
		out[e.Field()] = formatFieldError(e)
	}
	return out
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "failed validation: " + e.Tag()
	}
}
