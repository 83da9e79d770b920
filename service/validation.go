package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"raffler/models"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]+$`)

// newValidator returns a validator with the project's custom tags registered
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// validationError converts validator output into an InvalidArgument error
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewInvalidArgument("invalid input: %v", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return models.NewInvalidArgument("invalid input: %s", strings.Join(msgs, "; "))
}

// formatTime renders an optional timestamp for history details
func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// optionalInt renders an optional integer for history details
func optionalInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

// optionalString renders an optional string for history details
func optionalString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
