// Package common defines shared constants and sentinel errors used across
// repository, service and transport layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Input validation.
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidCode  = errors.New("invalid or expired code")

	// Identity / profile errors.
	ErrProfileNotFound  = errors.New("profile not found")
	ErrAccountInactive  = errors.New("account inactive")
	ErrIdentityNotFound = errors.New("identity not found")

	// Collaborator failures.
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrWebhookDeliveryFailed = errors.New("webhook delivery failed")

	// Payment errors.
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrSessionOwnerMismatch = errors.New("payment session belongs to another user")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
