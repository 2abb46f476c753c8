package genai

import "errors"

var (
	// ErrInvalidKey indicates the generation service rejected the secret key.
	ErrInvalidKey = errors.New("invalid generation key")
	// ErrQuotaExceeded indicates the key's quota ran out.
	ErrQuotaExceeded = errors.New("generation quota exceeded")
	// ErrMalformedResponse indicates the upstream answer carried no usable content.
	ErrMalformedResponse = errors.New("malformed generation response")
	// ErrNetwork indicates the generation service could not be reached.
	ErrNetwork = errors.New("generation network error")
)
