package models

import "time"

// PaymentStatus mirrors the processor's payment status, collapsed to what
// credit reconciliation cares about.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentOther  PaymentStatus = "other"
)

// PaymentType distinguishes one-time credit packs from subscriptions.
type PaymentType string

const (
	PaymentOneTime      PaymentType = "one_time"
	PaymentSubscription PaymentType = "subscription"
)

// PaymentMetadata is the server-owned data attached to a checkout session
// when it was created.
type PaymentMetadata struct {
	CreditAmount int64
	PaymentType  PaymentType
	Plan         string
	UserID       string
}

// PaymentSession is the read-only view of a processor checkout session.
type PaymentSession struct {
	SessionID         string
	PayerEmail        string
	ClientReferenceID string
	PaymentStatus     PaymentStatus
	AmountTotal       int64
	Currency          string
	Metadata          PaymentMetadata
}

// GrantSource records which path applied a credit grant.
type GrantSource string

const (
	GrantSourceWebhook GrantSource = "webhook"
	GrantSourceClient  GrantSource = "client"
	GrantSourceAdmin   GrantSource = "admin"
)

// CreditGrant is the idempotency marker: one row per paid session.
type CreditGrant struct {
	SessionID string
	UserID    string
	Amount    int64
	Source    GrantSource
	CreatedAt time.Time
}
