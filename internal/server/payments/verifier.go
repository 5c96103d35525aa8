// Package payments reads checkout sessions from the payment processor. It
// never creates or mutates processor objects.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Metadata keys written on checkout sessions when they are created.
const (
	MetaCreditAmount = "credit_amount"
	MetaPaymentType  = "payment_type"
	MetaPlan         = "plan"
	MetaUserID       = "user_id"
)

// Verifier returns the current state of a payment session.
type Verifier interface {
	GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error)
}

type sessionGetter interface {
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeVerifier is a Verifier backed by Stripe Checkout.
type StripeVerifier struct {
	sessions sessionGetter
}

func NewStripeVerifier(secretKey string) *StripeVerifier {
	sc := &client.API{}
	sc.Init(strings.TrimSpace(secretKey), nil)
	return &StripeVerifier{sessions: sc.CheckoutSessions}
}

func (v *StripeVerifier) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	cs, err := v.sessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeError(sessionID, err)
	}
	return SessionFromStripe(cs), nil
}

// classifyStripeError separates requests Stripe refused (unknown or malformed
// session ids) from outages. Rate limiting counts as an outage.
func classifyStripeError(sessionID string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: checkout session %s: %w", common.ErrInvalidInput, sessionID, err)
	}
	return fmt.Errorf("%w: retrieve checkout session %s: %w", common.ErrUpstreamUnavailable, sessionID, err)
}

// SessionFromStripe flattens a checkout session into the fields credit
// reconciliation needs.
func SessionFromStripe(cs *stripe.CheckoutSession) *models.PaymentSession {
	s := &models.PaymentSession{
		SessionID:         cs.ID,
		ClientReferenceID: strings.TrimSpace(cs.ClientReferenceID),
		PaymentStatus:     paymentStatus(cs.PaymentStatus),
		AmountTotal:       cs.AmountTotal,
		Currency:          strings.ToUpper(string(cs.Currency)),
	}

	s.PayerEmail = strings.TrimSpace(cs.CustomerEmail)
	if s.PayerEmail == "" && cs.CustomerDetails != nil {
		s.PayerEmail = strings.TrimSpace(cs.CustomerDetails.Email)
	}
	s.PayerEmail = strings.ToLower(s.PayerEmail)

	md := cs.Metadata
	s.Metadata.Plan = strings.TrimSpace(md[MetaPlan])
	s.Metadata.UserID = strings.TrimSpace(md[MetaUserID])
	if n, err := strconv.ParseInt(strings.TrimSpace(md[MetaCreditAmount]), 10, 64); err == nil && n > 0 {
		s.Metadata.CreditAmount = n
	}

	switch models.PaymentType(strings.TrimSpace(md[MetaPaymentType])) {
	case models.PaymentOneTime:
		s.Metadata.PaymentType = models.PaymentOneTime
	case models.PaymentSubscription:
		s.Metadata.PaymentType = models.PaymentSubscription
	default:
		if cs.Mode == stripe.CheckoutSessionModeSubscription {
			s.Metadata.PaymentType = models.PaymentSubscription
		} else {
			s.Metadata.PaymentType = models.PaymentOneTime
		}
	}

	return s
}

func paymentStatus(s stripe.CheckoutSessionPaymentStatus) models.PaymentStatus {
	switch s {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return models.PaymentPaid
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return models.PaymentUnpaid
	default:
		return models.PaymentOther
	}
}
