package auth

import "errors"

// Token validation errors returned by TokenService.ValidateToken.
var (
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)
