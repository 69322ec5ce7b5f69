package collab

import (
	"errors"
	"net/http"
)

// Error is a domain error with the HTTP status it maps to at the facade.
// Anything that is not an *Error surfaces as a 500 with a generic message;
// internal error text never reaches the caller.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func badRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Status: http.StatusConflict, Message: msg}
}

// StatusOf maps an error to its HTTP status and caller-safe message.
func StatusOf(err error) (int, string) {
	var de *Error
	if errors.As(err, &de) {
		return de.Status, de.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
