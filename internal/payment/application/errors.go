package application

import "errors"

var (
	ErrInvalidRequest           = errors.New("invalid request")
	ErrSignatureVerification    = errors.New("webhook signature verification failed")
	ErrProviderUnavailable      = errors.New("payment provider unavailable")
	ErrUnauthorizedInternalCall = errors.New("internal call rejected")
)
