package services

import (
	"context"
	"time"

	"MarksAPI/internal/model"
)

// UserStore persists users and their pending OTP.
// Lookups return apperr.ErrNotFound when nothing matches.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpsertOTP stores code and expiry on the user with this email, creating
	// the user when absent and replacing any earlier pending code.
	UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*model.User, error)
	// ConsumeOTP marks the user verified and clears the OTP fields, but only
	// while the stored code still equals code. ErrNotFound otherwise.
	ConsumeOTP(ctx context.Context, userID, code string) (*model.User, error)
	SetSubmittedMarks(ctx context.Context, email string) error
}

// MarksStore persists one marks record per owner email.
type MarksStore interface {
	GetByOwner(ctx context.Context, email string) (*model.Marks, error)
	Count(ctx context.Context) (int64, error)
	// Create fails with apperr.ErrDuplicate on a student ID or owner clash.
	Create(ctx context.Context, m *model.Marks) error
	Update(ctx context.Context, m *model.Marks) error
	ListByOverall(ctx context.Context) ([]model.Marks, error)
	ListByFat(ctx context.Context) ([]model.Marks, error)
	ListByStudentID(ctx context.Context) ([]model.Marks, error)
}

// AuthorizedEmailStore is the admin-editable half of the allow-list.
type AuthorizedEmailStore interface {
	List(ctx context.Context) ([]model.AuthorizedEmail, error)
	Exists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, email, addedBy string) (*model.AuthorizedEmail, error)
	Delete(ctx context.Context, id string) error
}
