package validation

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// Get returns the singleton validator instance
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "env"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		_ = validate.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return false
			}
			u, err := url.Parse(raw)
			if err != nil {
				return false
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false
			}
			return u.Hostname() != ""
		})

		// duration accepts Go duration strings such as "90s" or "24h".
		_ = validate.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			_, err := time.ParseDuration(strings.TrimSpace(fl.Field().String()))
			return err == nil
		})
	})
	return validate
}

// Validate validates a struct and returns an error if invalid
func Validate(s any) error {
	return Get().Struct(s)
}

// Describe turns the first failed rule of err into a field name and a short
// human reason. ok is false when err is not a validation failure.
func Describe(err error) (field, reason string, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", "", false
	}

	fe := verrs[0]
	field = fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		reason = "is required"
	case "http_url":
		reason = "must be an absolute http or https URL"
	case "duration":
		reason = "must be a duration such as 90s or 24h"
	case "min":
		reason = "must be at least " + fe.Param()
	case "max":
		reason = "must be at most " + fe.Param()
	case "oneof":
		reason = "must be one of: " + fe.Param()
	default:
		reason = "failed " + fe.Tag() + " validation"
	}
	return field, reason, true
}
