package repository

import (
	"context"
	"time"

	"MarksAPI/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `id, email, otp, otp_expiry, is_verified, has_submitted_marks, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.OTP, &u.OTPExpiresAt, &u.IsVerified, &u.HasSubmittedMarks, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.DB.QueryRow(ctx, query, email))
}

// UpsertOTP creates the user on first request and overwrites any pending code.
func (r *UserRepository) UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*model.User, error) {
	query := `
		INSERT INTO users (id, email, otp, otp_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (email) DO UPDATE
		SET otp = EXCLUDED.otp, otp_expiry = EXCLUDED.otp_expiry, updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns
	return scanUser(r.DB.QueryRow(ctx, query, uuid.NewString(), email, code, expiresAt, time.Now()))
}

// ConsumeOTP is a compare-and-clear on the stored code, so a code verifies once.
func (r *UserRepository) ConsumeOTP(ctx context.Context, userID, code string) (*model.User, error) {
	query := `
		UPDATE users
		SET is_verified = TRUE, otp = NULL, otp_expiry = NULL, updated_at = $3
		WHERE id = $1 AND otp = $2
		RETURNING ` + userColumns
	return scanUser(r.DB.QueryRow(ctx, query, userID, code, time.Now()))
}

func (r *UserRepository) SetSubmittedMarks(ctx context.Context, email string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE users
		SET has_submitted_marks = TRUE, updated_at = $2
		WHERE email = $1
	`, email, time.Now())
	return err
}

