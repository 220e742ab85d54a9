package handler

import (
	"errors"
	"net/http"

	"payment-bridge/pkg/apperror"
)

// bindError turns a request decoding failure into an AppError. Bodies cut off
// by MaxBodySize become 413.
func bindError(err error) *apperror.AppError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperror.ErrPayloadTooLarge()
	}
	return apperror.Validation(err.Error())
}
