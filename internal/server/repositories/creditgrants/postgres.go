// Package creditgrants provides the PostgreSQL ledger of applied credit
// grants. The primary key on session_id is what makes grants exactly-once.
package creditgrants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/photoai/internal/common"
	"github.com/dmitrijs2005/photoai/internal/dbx"
	"github.com/dmitrijs2005/photoai/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert relies on ON CONFLICT DO NOTHING: a concurrent insert for the same
// session blocks until the first transaction finishes, then yields no row.
func (r *PostgresRepository) Insert(ctx context.Context, grant *models.CreditGrant) (bool, error) {
	query := `INSERT INTO credit_grants (session_id, user_id, amount, source)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO NOTHING
		 RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		grant.SessionID, grant.UserID, grant.Amount, string(grant.Source)).Scan(&grant.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) Find(ctx context.Context, sessionID string) (*models.CreditGrant, error) {
	query := `SELECT session_id, user_id, amount, source, created_at
		 FROM credit_grants
		 WHERE session_id = $1`

	g := &models.CreditGrant{}
	var source string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&g.SessionID, &g.UserID, &g.Amount, &source, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.Source = models.GrantSource(source)
	return g, nil
}
