package service

import (
	"errors"

	"payment-bridge/internal/core/domain"
	"payment-bridge/pkg/apperror"
)

// toAppError maps domain failures onto the API error taxonomy.
func toAppError(err error) *apperror.AppError {
	if err == nil {
		return nil
	}

	var (
		appErr    *apperror.AppError
		authErr   *domain.AuthError
		gwErr     *domain.GatewayError
		sigErr    *domain.SignatureError
		notFound  *domain.NotFoundError
		configErr *domain.ConfigError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &authErr):
		// Checked before GatewayError: a rejected token request wraps one.
		return apperror.ErrGatewayAuth(err)
	case errors.As(err, &gwErr):
		if gwErr.Transport() {
			return apperror.ErrGatewayUnavailable(err)
		}
		return apperror.ErrGatewayRejected(gwErr.StatusCode, gwErr.Body, err)
	case errors.As(err, &sigErr):
		return apperror.ErrInvalidSignature()
	case errors.As(err, &notFound):
		return apperror.ErrNotFound("order")
	case errors.As(err, &configErr):
		return apperror.ErrConfig(err)
	case errors.Is(err, domain.ErrOrderExists):
		return apperror.ErrDuplicateOrder()
	case errors.Is(err, domain.ErrMalformedWebhook):
		return apperror.Validation(err.Error())
	default:
		return apperror.InternalError(err)
	}
}
