package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/dbx"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/server/config"
	"github.com/dmitrijs2005/photoai/internal/server/conversion"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/payments"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/repomanager"
)

// GrantResult reports the outcome of a grant attempt. Granted is false for
// repeats and for sessions that do not carry one-time credits.
type GrantResult struct {
	Granted      bool
	Amount       int64
	CreditsTotal int64
}

// CreditService applies one-time credit purchases to profiles exactly once
// per payment session, no matter how many paths report the payment.
type CreditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	verifier    payments.Verifier
	events      EventSink
	bundle      int64
	log         logging.Logger
	now         func() time.Time
}

func NewCreditService(db *sql.DB, m repomanager.RepositoryManager, verifier payments.Verifier, events EventSink, cfg *config.Config, log logging.Logger) *CreditService {
	return &CreditService{
		db:          db,
		repomanager: m,
		verifier:    verifier,
		events:      events,
		bundle:      cfg.OneTimeCreditBundle,
		log:         log.With("module", "credits"),
		now:         time.Now,
	}
}

// GrantCreditsForSession fetches the session from the processor and grants
// its credits to userID. Safe to call any number of times per session.
func (s *CreditService) GrantCreditsForSession(ctx context.Context, sessionID, userID string, source models.GrantSource) (*GrantResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	userID = strings.TrimSpace(userID)
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("%w: session id and user id are required", common.ErrInvalidInput)
	}

	sess, err := s.verifier.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrUpstreamUnavailable) || errors.Is(err, common.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
	}

	return s.apply(ctx, sess, userID, source)
}

// GrantFromWebhookSession grants credits for a session delivered by a signed
// processor notification. The owner is taken from session metadata, then the
// client reference, then the payer email.
func (s *CreditService) GrantFromWebhookSession(ctx context.Context, sess *models.PaymentSession) (*GrantResult, error) {
	if sess == nil || sess.SessionID == "" {
		return nil, fmt.Errorf("%w: empty session", common.ErrInvalidInput)
	}

	owner, linked, err := s.sessionOwner(ctx, sess)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		if !linked {
			return nil, fmt.Errorf("%w: session %s has no owner linkage", common.ErrProfileNotFound, sess.SessionID)
		}
		return nil, common.ErrProfileNotFound
	}

	return s.apply(ctx, sess, owner, models.GrantSourceWebhook)
}

// sessionOwner resolves the profile a session was paid for. linked is false
// when the session carries no owner hint at all; an unknown payer email
// yields linked with an empty owner.
func (s *CreditService) sessionOwner(ctx context.Context, sess *models.PaymentSession) (owner string, linked bool, err error) {
	if sess.Metadata.UserID != "" {
		return sess.Metadata.UserID, true, nil
	}
	if sess.ClientReferenceID != "" {
		return sess.ClientReferenceID, true, nil
	}
	if sess.PayerEmail == "" {
		return "", false, nil
	}

	p, err := s.repomanager.Profiles(s.db).GetByEmail(ctx, normalizeEmail(sess.PayerEmail))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", true, nil
		}
		return "", true, fmt.Errorf("error reading profile: %w", err)
	}
	return p.ID, true, nil
}

func (s *CreditService) apply(ctx context.Context, sess *models.PaymentSession, userID string, source models.GrantSource) (*GrantResult, error) {
	if sess.PaymentStatus != models.PaymentPaid {
		return nil, fmt.Errorf("%w: session %s is %s", common.ErrPaymentNotCompleted, sess.SessionID, sess.PaymentStatus)
	}
	if source != models.GrantSourceAdmin {
		owner, linked, err := s.sessionOwner(ctx, sess)
		if err != nil {
			return nil, err
		}
		if linked && owner != userID {
			s.log.Warn(ctx, "payment session owner mismatch", "session_id", sess.SessionID, "owner", owner, "user_id", userID, "source", source)
			return nil, common.ErrSessionOwnerMismatch
		}
	}
	if sess.Metadata.PaymentType != models.PaymentOneTime {
		s.log.Info(ctx, "session carries no one-time credits", "session_id", sess.SessionID, "payment_type", sess.Metadata.PaymentType)
		return &GrantResult{}, nil
	}

	amount := sess.Metadata.CreditAmount
	if amount <= 0 {
		amount = s.bundle
	}

	res := &GrantResult{Amount: amount}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.CreditGrants(tx).Insert(ctx, &models.CreditGrant{
			SessionID: sess.SessionID,
			UserID:    userID,
			Amount:    amount,
			Source:    source,
		})
		if err != nil {
			return fmt.Errorf("error recording credit grant: %w", err)
		}
		if !created {
			return nil
		}

		total, err := s.repomanager.Profiles(tx).AddCredits(ctx, userID, amount)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrProfileNotFound
			}
			return fmt.Errorf("error adding credits: %w", err)
		}
		res.Granted = true
		res.CreditsTotal = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	profilesRepo := s.repomanager.Profiles(s.db)
	if !res.Granted {
		prior, err := s.repomanager.CreditGrants(s.db).Find(ctx, sess.SessionID)
		if err != nil {
			return nil, fmt.Errorf("error reading credit grant: %w", err)
		}
		if prior.UserID != userID {
			s.log.Warn(ctx, "session already granted to another profile", "session_id", sess.SessionID, "granted_to", prior.UserID, "user_id", userID, "source", source)
			return nil, common.ErrSessionOwnerMismatch
		}
		res.Amount = prior.Amount
		s.log.Info(ctx, "duplicate credit grant attempt ignored", "session_id", sess.SessionID, "user_id", userID, "source", source, "first_source", prior.Source)
		if p, err := profilesRepo.GetByID(ctx, userID); err == nil {
			res.CreditsTotal = p.CreditsTotal
		}
		return res, nil
	}

	s.log.Info(ctx, "credits granted", "session_id", sess.SessionID, "user_id", userID, "amount", amount, "source", source, "credits_total", res.CreditsTotal)

	p, err := profilesRepo.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "purchase event skipped: profile unreadable", "user_id", userID, "err", err)
		return res, nil
	}
	ev := conversion.NewProfileEvent(conversion.EventPurchase, p, conversion.Attribution{}, s.now())
	ev.Amount = float64(sess.AmountTotal) / 100
	ev.Currency = sess.Currency
	ev.EventID = sess.SessionID
	s.events.Submit(ctx, ev)

	return res, nil
}
