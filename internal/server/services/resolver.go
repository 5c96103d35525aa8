package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/logging"
	"github.com/dmitrijs2005/photoai/internal/retry"
	"github.com/dmitrijs2005/photoai/internal/server/identity"
	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/repomanager"
)

// ProfileResolver finds the profile row for an email, waiting a bounded time
// for the identity store's trigger to create it and creating it itself when
// the row never shows up.
type ProfileResolver struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	identity    identity.Issuer
	attempts    int
	delay       time.Duration
	log         logging.Logger
}

func NewProfileResolver(db *sql.DB, m repomanager.RepositoryManager, issuer identity.Issuer, attempts int, delay time.Duration, log logging.Logger) *ProfileResolver {
	return &ProfileResolver{
		db:          db,
		repomanager: m,
		identity:    issuer,
		attempts:    attempts,
		delay:       delay,
		log:         log.With("module", "resolver"),
	}
}

// Resolve returns the profile for email. It fails with
// common.ErrIdentityNotFound when neither a row nor an identity exists.
func (r *ProfileResolver) Resolve(ctx context.Context, email string) (*models.Profile, error) {
	email = normalizeEmail(email)
	repo := r.repomanager.Profiles(r.db)

	policy := retry.Policy{
		Attempts:  r.attempts,
		Delay:     r.delay,
		Retryable: func(err error) bool { return errors.Is(err, common.ErrorNotFound) },
	}
	res, err := retry.Fetch(ctx, policy, func(ctx context.Context) (*models.Profile, error) {
		return repo.GetByEmail(ctx, email)
	})
	if err == nil {
		if res.Attempts > 1 {
			r.log.Info(ctx, "profile became visible after retries", "email", email, "attempts", res.Attempts)
		}
		return res.Value, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error reading profile: %w", err)
	}

	r.log.Warn(ctx, "profile not visible after retries, creating it", "email", email, "attempts", res.Attempts)
	return r.create(ctx, email)
}

func (r *ProfileResolver) create(ctx context.Context, email string) (*models.Profile, error) {
	u, err := r.identity.LookupUser(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrIdentityNotFound, err)
	}

	repo := r.repomanager.Profiles(r.db)
	p, err := repo.Create(ctx, &models.Profile{
		ID:            u.ID,
		Email:         email,
		MarketingFlag: models.MarketingUnset,
		IsActive:      true,
	})
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrorAlreadyExists) {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}

	// the trigger won the race; use its row
	r.log.Debug(ctx, "profile created concurrently", "email", email, "id", u.ID)
	p, err = repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		p, err = repo.GetByID(ctx, u.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading profile: %w", err)
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
