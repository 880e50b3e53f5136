package client

import (
	"errors"
	"fmt"
	"net/http"

	"accessbus/src/types"

	"github.com/tidwall/gjson"
)

// NetworkError means the server could not be reached.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthError is a 401 with the code from the "error" field.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationError carries the server message verbatim.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

type UnknownError struct {
	Status int
	Body   string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unexpected response %d", e.Status)
}

func classify(status int, body []byte) error {
	code := gjson.GetBytes(body, "error").String()
	msg := gjson.GetBytes(body, "message").String()
	switch status {
	case http.StatusUnauthorized:
		if code == "" {
			code = types.ERR_INVALID_TOKEN
		}
		return &AuthError{Code: code, Message: msg}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict,
		http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &ValidationError{Status: status, Message: msg}
	}
	return &UnknownError{Status: status, Body: string(body)}
}

func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *ValidationError
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// AuthCode returns the 401 code of err, or "" when err is not an AuthError.
func AuthCode(err error) string {
	var e *AuthError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
