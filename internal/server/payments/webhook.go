package payments

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Checkout events that can carry a paid session. Delayed payment methods
// report completion unpaid and settle with the async event later.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// IsCheckoutEvent reports whether eventType carries a checkout session.
func IsCheckoutEvent(eventType string) bool {
	return eventType == EventCheckoutSessionCompleted || eventType == EventCheckoutSessionAsyncPaymentSucceeded
}

// WebhookEvent is a verified processor notification. Session is set only for
// checkout events.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *models.PaymentSession
}

// ParseWebhook checks the signature header against secret and decodes the
// event. Any signature problem is reported as common.ErrorUnauthorized.
func ParseWebhook(payload []byte, sigHeader, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	we := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if !IsCheckoutEvent(we.Type) {
		return we, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: decode checkout.session: %w", common.ErrInvalidInput, err)
	}
	we.Session = SessionFromStripe(&cs)
	return we, nil
}
