package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/artpar/menagerie/domain/fault"
	"github.com/artpar/menagerie/pkg/jsonapi"
	"github.com/go-chi/chi/v5/middleware"
)

// statusFor maps a kernel error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "insufficient_funds", "insufficient_ingredients", "invalid_method",
		"max_level_reached", "module_locked", "capacity_exceeded":
		return http.StatusUnprocessableEntity
	case "not_owned":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "invalid_amount", "invalid_argument":
		return http.StatusBadRequest
	case "conflict", "concurrent_turn_in_progress":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorFor converts a kernel error into a JSON:API error object. Details of
// internal and configuration failures stay in the log.
func errorFor(err error) jsonapi.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return jsonapi.NewError(http.StatusServiceUnavailable, "timeout", "player is busy, try again")
	}

	code := fault.Code(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		return jsonapi.NewError(status, code, "an internal error occurred")
	}
	return jsonapi.NewError(status, code, err.Error())
}

// source points an error at the request member that caused it.
type source func(jsonapi.Error) jsonapi.Error

func field(pointer string) source {
	return func(e jsonapi.Error) jsonapi.Error { return e.At(pointer) }
}

func param(name string) source {
	return func(e jsonapi.Error) jsonapi.Error { return e.InParameter(name) }
}

// blamesInput reports whether code describes a bad request value, as
// opposed to game state such as funds or ownership.
func blamesInput(code string) bool {
	switch code {
	case "invalid_amount", "invalid_argument", "invalid_method", "insufficient_ingredients":
		return true
	}
	return false
}

func (h *GameHandler) writeError(w http.ResponseWriter, r *http.Request, err error, src ...source) {
	e := errorFor(err)
	if blamesInput(e.Code) {
		for _, s := range src {
			e = s(e)
		}
	}
	ev := h.logger.Debug()
	if e.StatusCode() >= http.StatusInternalServerError {
		ev = h.logger.Error()
	}
	ev.Err(err).
		Str("code", e.Code).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	jsonapi.WriteError(w, e)
}
