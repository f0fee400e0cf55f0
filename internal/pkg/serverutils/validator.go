package serverutils

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"ai-docreview-be/internal/pkg/apperrors"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation and converts the first failure
// into a 400-level error the error middleware can render.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return apperrors.NewValidationError("Invalid request payload")
	}

	first := validationErrs[0]
	return apperrors.NewValidationError(
		fmt.Sprintf("Field '%s' failed validation rule '%s'", first.Field(), first.Tag()),
	)
}
