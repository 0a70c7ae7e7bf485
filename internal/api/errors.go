package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(code int) *ApiError {
	return &ApiError{
		StatusCode: code,
		Message:    lower(http.StatusText(code)),
	}
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest)
}

// NewValidationError names the first field that failed validation.
func NewValidationError(err error) *ApiError {
	apiErr := NewBadRequestError()
	apiErr.Err = err

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		apiErr.Message = fmt.Sprintf("invalid %s: failed %q", lower(verrs[0].Field()), verrs[0].Tag())
	}
	return apiErr
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound)
}

func NewInternalServerError(err error) *ApiError {
	apiErr := newApiError(http.StatusInternalServerError)
	apiErr.Err = err
	return apiErr
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized)
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden)
}

func NewTooManyRequestsError() *ApiError {
	return newApiError(http.StatusTooManyRequests)
}

func NewRequestTooLargeError() *ApiError {
	return newApiError(http.StatusRequestEntityTooLarge)
}

func NewServiceUnavailableError() *ApiError {
	return newApiError(http.StatusServiceUnavailable)
}
