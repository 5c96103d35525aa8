package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/photoai/internal/dbx"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/creditgrants"
	"github.com/dmitrijs2005/photoai/internal/server/repositories/profiles"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Profiles(db dbx.DBTX) profiles.Repository
	CreditGrants(db dbx.DBTX) creditgrants.Repository
}
