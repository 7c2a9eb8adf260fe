package model

import "time"

// TokenManager issues and verifies signed identity tokens.
type TokenManager interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Verify(token string) (subject string, err error)
}
