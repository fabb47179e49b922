package api

import (
	"errors"
	"net/http"

	"github.com/samcharles93/sampler/internal/inference"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps driver errors onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, inference.ErrInvalidConfig),
		errors.Is(err, inference.ErrBatchMismatch),
		errors.Is(err, inference.ErrLengthExceedsContext),
		errors.Is(err, inference.ErrPromptTooLong):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, inference.ErrModelNotFound):
		return http.StatusNotFound, "not_found_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
