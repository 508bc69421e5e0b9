package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"apyscope/internal/types"
	"apyscope/pkg/apy"
	"apyscope/pkg/subgraph"
)

// ErrBadRequest marks malformed request input.
var ErrBadRequest = errors.New("bad request")

type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }
func (e badRequestError) Is(target error) bool {
	return target == ErrBadRequest
}

// BadRequest wraps a parse error so it maps to 400.
func BadRequest(err error) error {
	return badRequestError{err: err}
}

// StatusFor maps pipeline errors to HTTP status codes.
func StatusFor(err error) int {
	var fetchErr *subgraph.FetchError
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, apy.ErrInvalidWindow),
		errors.Is(err, subgraph.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors as JSON bodies. Install it with
// httpx.SetErrorHandlerCtx.
func ErrorHandler(ctx context.Context, err error) (int, any) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logx.WithContext(ctx).Errorf("request failed: %v", err)
	}
	return code, types.ErrorResponse{Code: code, Message: err.Error()}
}
