package jsonapi

import (
	"net/http"
	"strconv"
)

// NewError returns an error object titled with the standard text for status.
func NewError(status int, code, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

// At returns a copy of e blaming the request body member at pointer,
// a JSON pointer such as "/amount".
func (e Error) At(pointer string) Error {
	e.Source = &Source{Pointer: pointer}
	return e
}

// InParameter returns a copy of e blaming the named URL parameter.
func (e Error) InParameter(name string) Error {
	e.Source = &Source{Parameter: name}
	return e
}

// StatusCode returns the HTTP status, or 0 when Status does not parse.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// ErrBadRequest reports a malformed request body or query value.
func ErrBadRequest(detail string) Error {
	return NewError(http.StatusBadRequest, "bad_request", detail)
}

// ErrNotFound reports a path no route matches.
func ErrNotFound(path string) Error {
	return NewError(http.StatusNotFound, "not_found", "no route for "+path)
}

// ErrMethodNotAllowed reports a method the matched route does not serve.
func ErrMethodNotAllowed(method string) Error {
	return NewError(http.StatusMethodNotAllowed, "method_not_allowed",
		method+" is not allowed on this resource")
}

// ErrInternal reports a failure whose details stay in the server log.
func ErrInternal() Error {
	return NewError(http.StatusInternalServerError, "internal", "an internal error occurred")
}
