package types

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// QueryParams is the body of a RAG query request.
type QueryParams struct {
	Question  string `json:"question" validate:"required"`
	Category  string `json:"category,omitempty"`
	Directory string `json:"directory,omitempty"`
	DateFrom  string `json:"date_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `json:"date_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	Model     string `json:"model,omitempty"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QueryParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}
