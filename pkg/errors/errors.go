// Package errors defines the sentinel errors shared by the index builder, the
// shard store and the query engine, plus an AppError type that carries an
// HTTP status for the search API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidSymbolName = errors.New("invalid symbol name")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrShardLoadFailure  = errors.New("shard load failure")
	ErrInvalidCatalog    = errors.New("invalid catalog")
	ErrIndexUnavailable  = errors.New("index unavailable")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
	ErrRateLimited       = errors.New("rate limit exceeded")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It lets callers
// that import this package avoid a second import of the standard errors.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidSymbolName):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCatalog):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrShardLoadFailure), errors.Is(err, ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
