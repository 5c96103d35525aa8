// Package common contains shared constants and sentinel errors used across
// the photo backend components.
package common

// AuthorizationHeaderName carries the bearer session token on inbound HTTP requests.
const AuthorizationHeaderName = "Authorization"

// Roles understood by the authorization checks.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// VerificationCodeLength is the number of digits in a one-time code.
const VerificationCodeLength = 6
