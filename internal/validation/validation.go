package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// FieldIssue is one failed rule.
type FieldIssue struct {
	Field string
	Tag   string
	Param string
}

// Message renders the issue for API clients.
func (f FieldIssue) Message() string {
	switch f.Tag {
	case "required", "notblank":
		return "is required"
	case "min":
		return "must be at least " + f.Param + " characters"
	case "max":
		return "must be at most " + f.Param + " characters"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "eqfield":
		return "must match " + f.Param
	case "username":
		return "must be 3-30 letters, digits or underscores"
	case "oneof":
		return "must be one of " + f.Param
	}
	return "failed " + f.Tag + " validation"
}

// Error collects every issue of one struct.
type Error struct {
	Issues []FieldIssue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", i.Field, i.Message()))
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct using go-playground/validator. Rule
// failures come back as *Error.
func ValidateStruct(s any) error {
	if s == nil {
		return nil
	}

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validator: expected a struct, got %T", s)
	}

	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validation failed: %w", err)
	}
	out := &Error{Issues: make([]FieldIssue, 0, len(ve))}
	for _, fe := range ve {
		field := fe.Field()
		if field == "" {
			field = fe.StructField()
		}
		out.Issues = append(out.Issues, FieldIssue{Field: field, Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// IsUsername reports whether s is an acceptable username.
func IsUsername(s string) bool {
	return usernamePattern.MatchString(s)
}
