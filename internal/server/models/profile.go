// Package models defines server-side data models persisted in the database
// or exchanged with external collaborators.
package models

import "time"

// MarketingFlag tracks conversion-funnel progress for analytics attribution.
// It only moves forward: unset -> lead -> registered.
type MarketingFlag string

const (
	MarketingUnset      MarketingFlag = "unset"
	MarketingLead       MarketingFlag = "lead"
	MarketingRegistered MarketingFlag = "registered"
)

func (f MarketingFlag) rank() int {
	switch f {
	case MarketingLead:
		return 1
	case MarketingRegistered:
		return 2
	default:
		return 0
	}
}

// Valid reports whether f is one of the known states.
func (f MarketingFlag) Valid() bool {
	return f == MarketingUnset || f == MarketingLead || f == MarketingRegistered
}

// CanAdvanceTo reports whether next is exactly one step ahead of f.
func (f MarketingFlag) CanAdvanceTo(next MarketingFlag) bool {
	return f.Valid() && next.Valid() && next.rank() == f.rank()+1
}

// RegistrationPending is true until the first successful verification.
func (f MarketingFlag) RegistrationPending() bool {
	return f != MarketingRegistered
}

// Profile is the application-owned user record, correlated with the
// identity provider account through ID and Email.
type Profile struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	Phone            string
	MarketingFlag    MarketingFlag
	IsActive         bool
	Role             string
	SubscriptionPlan string
	CreditsTotal     int64
	CreditsUsed      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreditsRemaining is the unspent balance.
func (p *Profile) CreditsRemaining() int64 {
	return p.CreditsTotal - p.CreditsUsed
}
