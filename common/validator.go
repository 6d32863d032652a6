package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const invalidInputMessage = "Invalid input!"

// ValidateAndDecode decodes a JSON body into payload and runs struct validation.
func ValidateAndDecode(r *http.Request, payload interface{}) *AppError {
	if r.Body == nil {
		return NewAppError(http.StatusBadRequest, invalidInputMessage, errors.New("empty request body"))
	}
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return NewAppError(http.StatusBadRequest, invalidInputMessage, err)
	}

	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewAppError(http.StatusBadRequest, invalidInputMessage, validationErrors)
		}
		return NewAppError(http.StatusBadRequest, invalidInputMessage, err)
	}

	return nil
}
