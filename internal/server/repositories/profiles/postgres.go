// Package profiles provides the PostgreSQL-backed profile store.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/dbx"
	"github.com/dmitrijs2005/photoai/internal/server/models"
)

const profileColumns = `id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''),
		        marketing_flag, is_active, role, subscription_plan,
		        credits_total, credits_used, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanProfile(row *sql.Row) (*models.Profile, error) {
	p := &models.Profile{}
	var flag string
	err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &p.Phone,
		&flag, &p.IsActive, &p.Role, &p.SubscriptionPlan,
		&p.CreditsTotal, &p.CreditsUsed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.MarketingFlag = models.MarketingFlag(flag)
	return p, nil
}

// GetByEmail looks a profile up by case-insensitive email.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
		 FROM profiles
		 WHERE lower(email) = lower($1)`

	return scanProfile(r.db.QueryRowContext(ctx, query, email))
}

// GetByID looks a profile up by its identity id.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + `
		 FROM profiles
		 WHERE id = $1`

	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a new profile row with default role, plan and credits.
// A duplicate id or email surfaces as common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	query := `INSERT INTO profiles (id, email, marketing_flag, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING ` + profileColumns

	created, err := scanProfile(r.db.QueryRowContext(ctx, query, profile.ID, profile.Email, string(profile.MarketingFlag)))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
		}
		return nil, err
	}
	return created, nil
}

// AdvanceMarketingFlag performs a compare-and-set on marketing_flag.
func (r *PostgresRepository) AdvanceMarketingFlag(ctx context.Context, id string, from, to models.MarketingFlag) (bool, error) {
	query := `UPDATE profiles
		 SET marketing_flag = $3, updated_at = now()
		 WHERE id = $1 AND marketing_flag = $2`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// AddCredits increments credits_total and returns the new total.
// If the profile does not exist, it returns common.ErrorNotFound.
func (r *PostgresRepository) AddCredits(ctx context.Context, id string, amount int64) (int64, error) {
	query := `UPDATE profiles
		 SET credits_total = credits_total + $2, updated_at = now()
		 WHERE id = $1
		 RETURNING credits_total`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, id, amount).Scan(&total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}
