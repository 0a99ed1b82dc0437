package models

import (
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxNameLength is the rune limit shared by every short text column.
const MaxNameLength = 100

// MaxSmallInt is the largest value a small integer column can hold on every
// supported database.
const MaxSmallInt = 32767

var webSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"ftp":   {},
	"ftps":  {},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// ValidationError reports the fields of a record that violate its constraints.
type ValidationError struct {
	Record string
	Fields validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return e.Fields
}

// HasField reports whether the named field (json name) failed validation.
func (e *ValidationError) HasField(name string) bool {
	for _, fe := range e.Fields {
		if fe.Field() == name {
			return true
		}
	}
	return false
}

// Validator returns the shared validator with the catalog's custom tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			switch name {
			case "-":
				return ""
			case "":
				return field.Name
			}
			return name
		})
		if err := v.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
			return IsWebURL(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		}); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

// IsWebURL reports whether raw is an absolute http, https, ftp or ftps URL with a host.
func IsWebURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if _, ok := webSchemes[strings.ToLower(u.Scheme)]; !ok {
		return false
	}
	return u.Hostname() != ""
}

func validateRecord(name string, record any) error {
	err := Validator().Struct(record)
	if err == nil {
		return nil
	}
	if fields, ok := err.(validator.ValidationErrors); ok {
		return &ValidationError{Record: name, Fields: fields}
	}
	return err
}
