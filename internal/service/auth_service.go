package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"payment-bridge/internal/core/ports"
	"payment-bridge/pkg/apperror"
)

// OperatorAuthServiceImpl implements ports.OperatorAuthService for the single
// operator account configured at startup.
type OperatorAuthServiceImpl struct {
	username     string
	passwordHash string
	hashSvc      ports.HashService
	tokenSvc     ports.TokenService
}

// NewOperatorAuthService creates a new OperatorAuthServiceImpl.
func NewOperatorAuthService(
	username, passwordHash string,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
) *OperatorAuthServiceImpl {
	return &OperatorAuthServiceImpl{
		username:     username,
		passwordHash: passwordHash,
		hashSvc:      hashSvc,
		tokenSvc:     tokenSvc,
	}
}

// Login validates credentials and returns a JWT token.
func (s *OperatorAuthServiceImpl) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if s.username == "" || s.passwordHash == "" {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// The password is checked even for a wrong username so both paths cost the same.
	valid, err := s.hashSvc.Verify(password, s.passwordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	if !valid || !userOK {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(s.username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
