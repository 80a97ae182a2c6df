// Package users provides the credential store: one persisted record per
// account holding the password hash, verification state, OTP material, and
// the current session id.
package users

import (
	"context"

	"github.com/murichu/go-auth-service/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Update persists the full mutable state of the record: password hash,
	// verification flag, OTP fields, and session id.
	Update(ctx context.Context, user *models.User) error
}
