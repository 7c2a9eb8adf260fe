package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/identity-server/internal/logger"
	"github.com/dtroode/identity-server/internal/model"
)

// TokenService binds tokens to user ids and applies the configured lifetime.
type TokenService struct {
	manager model.TokenManager
	ttl     time.Duration
	logger  *logger.Logger
	now     func() time.Time
}

func NewTokenService(manager model.TokenManager, ttl time.Duration, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, ttl: ttl, logger: logger, now: time.Now}
}

// Issue returns a token for userID and the moment it stops being valid.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	expiresAt := s.now().Add(s.ttl)

	token, err := s.manager.Issue(userID.String(), s.ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue token: %w", err)
	}

	return token, expiresAt, nil
}

// GetUserID verifies token and returns the user id it was issued for.
func (s *TokenService) GetUserID(ctx context.Context, token string) (uuid.UUID, error) {
	subject, err := s.manager.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := uuid.Parse(subject)
	if err != nil {
		s.logger.Debug("Token service: subject is not a user id",
			"subject", subject)
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", model.ErrTokenMalformed)
	}

	return userID, nil
}
