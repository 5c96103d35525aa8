package creditgrants

import (
	"context"

	"github.com/dmitrijs2005/photoai/internal/server/models"
)

// Repository persists credit-grant markers keyed by payment session id.
type Repository interface {
	// Insert records the grant unless one already exists for the session.
	// It reports whether this call created the marker.
	Insert(ctx context.Context, grant *models.CreditGrant) (bool, error)
	Find(ctx context.Context, sessionID string) (*models.CreditGrant, error)
}
