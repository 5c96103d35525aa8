package profiles

import (
	"context"

	"github.com/dmitrijs2005/photoai/internal/server/models"
)

// Repository is the ProfileStore: the columns of the profiles table this
// service reads and writes.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	// AdvanceMarketingFlag moves the flag from -> to only if it currently
	// equals from. It reports whether this call performed the transition.
	AdvanceMarketingFlag(ctx context.Context, id string, from, to models.MarketingFlag) (bool, error)
	AddCredits(ctx context.Context, id string, amount int64) (int64, error)
}
