package accounts

import "errors"

var (
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken indicates registration with an already used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrTokenInvalid indicates a token that fails signature or claim checks.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenRevoked indicates a structurally valid token whose session
	// was signed out or has expired.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("password too short")
	// ErrInvalidEmail indicates an email that fails basic shape checks.
	ErrInvalidEmail = errors.New("invalid email")
)
