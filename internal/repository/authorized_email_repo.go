package repository

import (
	"context"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthorizedEmailRepository struct {
	DB *pgxpool.Pool
}

func NewAuthorizedEmailRepository(db *pgxpool.Pool) *AuthorizedEmailRepository {
	return &AuthorizedEmailRepository{DB: db}
}

// List returns entries newest first.
func (r *AuthorizedEmailRepository) List(ctx context.Context) ([]model.AuthorizedEmail, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, email, added_by, created_at, updated_at
		FROM authorized_emails
		ORDER BY created_at DESC, email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AuthorizedEmail{}
	for rows.Next() {
		var e model.AuthorizedEmail
		if err := rows.Scan(&e.ID, &e.Email, &e.AddedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *AuthorizedEmailRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM authorized_emails WHERE email=$1)`
	if err := r.DB.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AuthorizedEmailRepository) Create(ctx context.Context, email, addedBy string) (*model.AuthorizedEmail, error) {
	e := model.AuthorizedEmail{ID: uuid.NewString(), Email: email, AddedBy: addedBy}
	query := `
		INSERT INTO authorized_emails (id, email, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING created_at, updated_at
	`
	if err := r.DB.QueryRow(ctx, query, e.ID, e.Email, e.AddedBy, time.Now()).Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (r *AuthorizedEmailRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.ErrNotFound
	}
	tag, err := r.DB.Exec(ctx, `DELETE FROM authorized_emails WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
