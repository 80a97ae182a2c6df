package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/dbx"
	"github.com/murichu/go-auth-service/internal/server/models"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit,
// here the unique index on users.email.
const uniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, name, password_hash, is_account_verified,
		verify_otp_hash, verify_otp_expire_at, otp_last_sent_at,
		reset_otp_hash, reset_otp_expire_at, reset_otp_last_sent_at,
		current_session_id, created_at`

// Create inserts a new credential record. A duplicate email returns
// common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query := `
		INSERT INTO users (id, email, name, password_hash, current_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CurrentSessionID, user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByEmail returns the record for the given (already normalized) email.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID returns the record with the given id.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// Update saves the full mutable state of the record in one statement.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			password_hash = $2,
			is_account_verified = $3,
			verify_otp_hash = $4,
			verify_otp_expire_at = $5,
			otp_last_sent_at = $6,
			reset_otp_hash = $7,
			reset_otp_expire_at = $8,
			reset_otp_last_sent_at = $9,
			current_session_id = $10
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.PasswordHash, user.IsAccountVerified,
		user.VerifyOtpHash, user.VerifyOtpExpireAt, user.OtpLastSentAt,
		user.ResetOtpHash, user.ResetOtpExpireAt, user.ResetOtpLastSentAt,
		user.CurrentSessionID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsAccountVerified,
		&user.VerifyOtpHash, &user.VerifyOtpExpireAt, &user.OtpLastSentAt,
		&user.ResetOtpHash, &user.ResetOtpExpireAt, &user.ResetOtpLastSentAt,
		&user.CurrentSessionID, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
