package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"stockmaster/console/internal/store"
)

var validate = validator.New()

// validateRequest runs the struct's validate tags and reports the first
// failure as ErrInvalidInput with a message an operator can act on.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) && len(validationErr) > 0 {
		return fmt.Errorf("%w: %s", store.ErrInvalidInput, fieldMessage(validationErr[0]))
	}
	return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "eqfield":
		return fmt.Sprintf("%s does not match %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
