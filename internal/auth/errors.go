package auth

import "net/http"

// Error is a gate failure: a short machine-readable code, a description for
// humans and the HTTP status it maps to.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Status      int    `json:"-"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Code + ": " + e.Description + ": " + e.cause.Error()
	}
	return e.Code + ": " + e.Description
}

func (e *Error) Unwrap() error { return e.cause }

func unauthorized(code, description string) *Error {
	return &Error{Code: code, Description: description, Status: http.StatusUnauthorized}
}

func forbidden(code, description string) *Error {
	return &Error{Code: code, Description: description, Status: http.StatusForbidden}
}
