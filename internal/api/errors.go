package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Kind classifies handler errors at the HTTP boundary.
type Kind int

const (
	// KindInternal becomes a bare 500.
	KindInternal Kind = iota
	// KindInput is a client mistake answered with 400 and a JSON body.
	KindInput
	// KindHTTP aborts with an explicit status and an optional JSON body.
	KindHTTP
)

// Error is returned by handlers to control the response status and body.
type Error struct {
	Kind   Kind
	Status int
	Body   any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// InputError answers 400 with body.
func InputError(body any) *Error {
	return &Error{Kind: KindInput, Status: http.StatusBadRequest, Body: body}
}

// Abort answers status with body, which may be nil for an empty response.
func Abort(status int, body any) *Error {
	return &Error{Kind: KindHTTP, Status: status, Body: body}
}

// ErrorBody is the {"Error": "..."} shape used for header problems.
func ErrorBody(msg string) map[string]string {
	return map[string]string{"Error": msg}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind != KindInternal {
		logger.Info("api request aborted",
			slog.String("path", r.URL.Path),
			slog.Int("status", apiErr.Status),
		)
		if apiErr.Body == nil {
			w.WriteHeader(apiErr.Status)
			return
		}
		render.Status(r, apiErr.Status)
		render.JSON(w, r, apiErr.Body)
		return
	}

	logger.Error("api handler failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	w.WriteHeader(http.StatusInternalServerError)
}
