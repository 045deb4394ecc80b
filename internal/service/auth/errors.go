package auth

import "errors"

// Token validation failures. The auth middleware and the API error mapper
// turn every one of them into 401.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken is returned when a request carries no bearer token or
	// reaches a handler without a resolved principal.
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrWrongTokenType rejects a well-formed token minted for another use.
	ErrWrongTokenType = errors.New("wrong token type")
)
