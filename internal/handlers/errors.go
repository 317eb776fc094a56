package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/link-converter/internal/ratelimit"
	"github.com/serroba/link-converter/internal/shortener"
)

const (
	ErrorTypeBadRequest        = "BAD_REQUEST"
	ErrorTypeValidation        = "VALIDATION_ERROR"
	ErrorTypeNotFound          = "NOT_FOUND"
	ErrorTypeCollision         = "COLLISION"
	ErrorTypeExpired           = "EXPIRED"
	ErrorTypeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrorTypeServer            = "SERVER_ERROR"
)

// ErrorResponse is the body of every error returned by the API.
type ErrorResponse struct {
	status int

	Message   string   `doc:"Human readable description"  json:"message"`
	ErrorType string   `doc:"Machine readable error kind" json:"errorType"`
	Details   []string `doc:"Validation details"          json:"details,omitempty"`
}

var _ huma.StatusError = (*ErrorResponse)(nil)

func (e *ErrorResponse) Error() string {
	return e.Message
}

func (e *ErrorResponse) GetStatus() int {
	return e.status
}

// NewError builds an ErrorResponse for status. It replaces huma.NewError so validation and
// framework errors share the envelope of domain errors.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	resp := &ErrorResponse{
		status:    status,
		Message:   msg,
		ErrorType: errorType(status),
	}

	for _, err := range errs {
		if err != nil {
			resp.Details = append(resp.Details, err.Error())
		}
	}

	return resp
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrorTypeBadRequest
	case http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusConflict:
		return ErrorTypeCollision
	case http.StatusGone:
		return ErrorTypeExpired
	case http.StatusTooManyRequests:
		return ErrorTypeRateLimitExceeded
	default:
		return ErrorTypeServer
	}
}

// mapError translates engine errors into API errors. Unknown errors become a generic 500.
func mapError(err error) huma.StatusError {
	var exceeded *ratelimit.LimitExceeded

	switch {
	case errors.As(err, &exceeded):
		return NewError(http.StatusTooManyRequests, exceeded.Error())
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		return NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return NewError(http.StatusNotFound, "short link not found")
	case errors.Is(err, shortener.ErrExpired):
		return NewError(http.StatusGone, "short link has expired")
	case errors.Is(err, shortener.ErrCodeCollision):
		return NewError(http.StatusConflict, "short code collision detected")
	default:
		return NewError(http.StatusInternalServerError, "Internal server error")
	}
}
