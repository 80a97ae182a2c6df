package repomanager

import (
	"context"
	"database/sql"

	"github.com/murichu/go-auth-service/internal/dbx"
	"github.com/murichu/go-auth-service/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
