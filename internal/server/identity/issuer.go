// Package identity talks to the external identity store that owns
// one-time codes and the stable user ids profiles are keyed by.
package identity

import "context"

// User is the identity store's view of an account.
type User struct {
	ID    string
	Email string
}

// Issuer sends and verifies one-time codes. The codes themselves never
// pass through this service's storage.
type Issuer interface {
	// SendCode asks the store to deliver a code to email, creating the
	// identity if it does not exist yet.
	SendCode(ctx context.Context, email string) error
	// VerifyCode returns common.ErrInvalidCode when the store rejects the
	// code and common.ErrUpstreamUnavailable when it cannot be reached.
	VerifyCode(ctx context.Context, email, code string) (*User, error)
	// LookupUser returns common.ErrIdentityNotFound when no identity has
	// this email.
	LookupUser(ctx context.Context, email string) (*User, error)
}
