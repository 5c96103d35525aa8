package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/payments"
	"github.com/dmitrijs2005/photoai/internal/server/webhookdedup"
)

const stripeWebhookBodyLimit = 1024 * 1024

type confirmPaymentRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
}

type adminGrantRequest struct {
	SessionID string `json:"session_id" validate:"required,max=255"`
	UserID    string `json:"user_id" validate:"required,max=64"`
}

type grantResponse struct {
	Success      bool  `json:"success"`
	Granted      bool  `json:"granted"`
	CreditsTotal int64 `json:"credits_total"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

func (a *API) confirmPayment(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req confirmPaymentRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	res, err := a.deps.Credits.GrantCreditsForSession(ctx, req.SessionID, claims.ID, models.GrantSourceClient)
	if err != nil {
		a.log.Error(r.Context(), "payment confirmation failed", "session_id", req.SessionID, "user_id", claims.ID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grantResponse{Success: true, Granted: res.Granted, CreditsTotal: res.CreditsTotal})
}

func (a *API) adminGrant(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req adminGrantRequest
	if err := a.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	a.log.Warn(r.Context(), "admin credit grant", "admin_id", claims.ID, "session_id", req.SessionID, "user_id", req.UserID)
	res, err := a.deps.Credits.GrantCreditsForSession(ctx, req.SessionID, req.UserID, models.GrantSourceAdmin)
	if err != nil {
		a.log.Error(r.Context(), "admin credit grant failed", "session_id", req.SessionID, "user_id", req.UserID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grantResponse{Success: true, Granted: res.Granted, CreditsTotal: res.CreditsTotal})
}

// stripeWebhook verifies the signature, then grants credits for paid
// checkouts, including delayed payment methods. Non-2xx responses make the processor redeliver.
func (a *API) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	secret := strings.TrimSpace(a.deps.StripeWebhookSecret)
	if secret == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Code: CodeUpstreamUnavailable, Message: "Stripe webhook secret is not configured."})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, stripeWebhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, common.ErrInvalidInput)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: CodeUnauthorized, Message: "Invalid Stripe signature."})
		return
	}

	event, err := payments.ParseWebhook(payload, sigHeader, secret)
	if err != nil {
		a.log.Warn(r.Context(), "stripe webhook rejected", "err", err)
		if errors.Is(err, common.ErrorUnauthorized) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: CodeUnauthorized, Message: "Invalid Stripe signature."})
			return
		}
		writeError(w, err)
		return
	}

	already, err := a.deps.Deduper.Do(r.Context(), event.ID, func() error {
		return a.handleStripeEvent(r.Context(), event)
	})
	if err != nil {
		if errors.Is(err, webhookdedup.ErrInFlight) {
			a.log.Warn(r.Context(), "stripe webhook event is in-flight; asking for redelivery", "event_id", event.ID, "type", event.Type)
			writeJSON(w, http.StatusConflict, errorResponse{Code: "IN_FLIGHT", Message: "Event is being processed; retry later."})
			return
		}
		a.log.Error(r.Context(), "stripe webhook processing failed", "event_id", event.ID, "type", event.Type, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: CodeInternal, Message: "Failed to process Stripe webhook."})
		return
	}

	status := "processed"
	if already {
		status = "duplicate"
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Status: status})
}

func (a *API) handleStripeEvent(ctx context.Context, event *payments.WebhookEvent) error {
	if !payments.IsCheckoutEvent(event.Type) || event.Session == nil {
		a.log.Info(ctx, "stripe webhook ignored (unhandled type)", "event_id", event.ID, "type", event.Type)
		return nil
	}

	res, err := a.deps.Credits.GrantFromWebhookSession(ctx, event.Session)
	switch {
	case err == nil:
		a.log.Info(ctx, "stripe checkout processed", "event_id", event.ID, "session_id", event.Session.SessionID, "granted", res.Granted)
		return nil
	case errors.Is(err, common.ErrPaymentNotCompleted):
		// delayed methods settle with checkout.session.async_payment_succeeded
		a.log.Info(ctx, "stripe checkout not paid yet", "event_id", event.ID, "session_id", event.Session.SessionID)
		return nil
	case errors.Is(err, common.ErrSessionOwnerMismatch):
		a.log.Error(ctx, "stripe checkout owner mismatch, not retrying", "event_id", event.ID, "session_id", event.Session.SessionID)
		return nil
	default:
		return err
	}
}
