package types

import (
	"errors"
	"net/http"
)

// APIError is rendered as {"error": Code, "message": Message}.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

func ValidationError(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ERR_VALIDATION, message)
}

func NotFoundError(message string) *APIError {
	return NewAPIError(http.StatusNotFound, ERR_NOT_FOUND, message)
}

func ConflictError(message string) *APIError {
	return NewAPIError(http.StatusConflict, ERR_CONFLICT, message)
}

func UnauthorizedError(code, message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, code, message)
}

// ErrorBody maps err to a status code and response body. Errors that are not
// an *APIError are classified by status.
func ErrorBody(status int, err error) (int, map[string]any) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, map[string]any{"error": apiErr.Code, "message": apiErr.Message, "success": false}
	}
	code := ERR_INTERNAL
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = ERR_VALIDATION
	case http.StatusNotFound:
		code = ERR_NOT_FOUND
	case http.StatusConflict:
		code = ERR_CONFLICT
	case http.StatusUnauthorized:
		code = ERR_INVALID_TOKEN
	}
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "something went wrong"
	}
	return status, map[string]any{"error": code, "message": msg, "success": false}
}
