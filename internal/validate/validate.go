// Package validate runs struct-tag validation and reports violations as
// field errors keyed by their JSON path.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return v
}

// Struct validates s and returns every violation. A nil slice means valid.
func Struct(s any) []errs.FieldError {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []errs.FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]errs.FieldError, 0, len(ves))
	for _, fe := range ves {
		out = append(out, errs.FieldError{Field: fieldPath(fe), Message: describe(fe)})
	}
	return out
}

// fieldPath drops the root struct name: "Document.deliverables[0].name" -> "deliverables[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters", p)
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain at least %s items", p)
		}
		return "must be at least " + p
	case "max", "lte":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at most %s characters", p)
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("must contain at most %s items", p)
		}
		return "must be at most " + p
	case "gt":
		return "must be greater than " + p
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(p, " ", ", ")
	case "eq":
		return "must be " + p
	case "email":
		return "must be a valid email"
	case "url", "http_url":
		return "must be a valid URL"
	}
	return "is invalid"
}
