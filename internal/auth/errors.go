package auth

import "errors"

var (
	// ErrInvalidToken means the presented token failed verification. The
	// store is never touched on this path.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthorized means a verified token's subject does not match the
	// identity the caller claims. The claimed identity's token family is
	// revoked as a precaution.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReuseDetected means a verified refresh token was not in the store:
	// it was already rotated away, so someone replayed it. The whole token
	// family is revoked.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrInvalidCredentials is deliberately the same for unknown user and
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrRateLimited         = errors.New("too many attempts")
	ErrUserExists          = errors.New("username or email already taken")
	ErrInvalidRegistration = errors.New("invalid registration")
)
