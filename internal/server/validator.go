package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/grouprank/strava-ranking/internal/domain"
)

// appValidator wraps go-playground/validator for echo.
type appValidator struct {
	validator *validator.Validate
}

func newValidator() *appValidator {
	return &appValidator{validator: validator.New()}
}

// Validate validates a struct using go-playground/validator tags.
func (v *appValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("%w: %s failed on '%s' validation", domain.ErrInvalidArgument, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
