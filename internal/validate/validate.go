// Package validate wraps go-playground/validator with the tags and messages
// used across the service.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MagnunAVF/shortlink/internal"
)

var (
	validate = newValidator()
	aliasRe  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Reserved words collide with fixed routes and cannot be used as short codes.
var reserved = map[string]bool{
	"shorten":   true,
	"links":     true,
	"analytics": true,
	"auth":      true,
	"healthz":   true,
	"readyz":    true,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return aliasRe.MatchString(fl.Field().String())
	})
	// maxbytes bounds the encoded length, unlike max which counts runes.
	v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= n
	})
	return v
}

func IsReserved(code string) bool {
	return reserved[strings.ToLower(code)]
}

// Struct validates s and returns a *internal.ValidationError listing every
// failing field, or nil.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	out := &internal.ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, internal.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

// Alias checks a short code outside of struct validation.
func Alias(field, code string) error {
	switch {
	case strings.TrimSpace(code) == "":
		return internal.NewValidationError(field, field+" cannot be empty")
	case len(code) > 64:
		return internal.NewValidationError(field, field+" must be at most 64 characters")
	case !aliasRe.MatchString(code):
		return internal.NewValidationError(field, field+" may only contain letters, digits, '-' and '_'")
	case IsReserved(code):
		return internal.NewValidationError(field, fmt.Sprintf("%s %q is reserved", field, code))
	}
	return nil
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url", "http_url":
		return fmt.Sprintf("%s must be a valid absolute URL", field)
	case "alias":
		return fmt.Sprintf("%s may only contain letters, digits, '-' and '_'", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
