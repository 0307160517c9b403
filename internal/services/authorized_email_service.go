package services

import (
	"context"
	"errors"
	"fmt"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"go.uber.org/zap"
)

var (
	ErrAuthorizedEmailExists   = apperr.Conflict("This email is already authorized")
	ErrAuthorizedEmailNotFound = apperr.NotFound("Authorized email not found")
)

// EmailList is a read-only allow-list source such as the static file.
type EmailList interface {
	Contains(email string) (bool, error)
}

type AuthorizedEmailService struct {
	file      EmailList
	store     AuthorizedEmailStore
	validator EmailValidator
	log       *zap.Logger
}

func NewAuthorizedEmailService(file EmailList, store AuthorizedEmailStore, validator EmailValidator, log *zap.Logger) *AuthorizedEmailService {
	if validator == nil {
		validator = SyntaxValidator{}
	}
	return &AuthorizedEmailService{file: file, store: store, validator: validator, log: log.Named("authorized_emails")}
}

// IsAuthorized checks the file first, then the database. An unreadable file
// counts as empty.
func (s *AuthorizedEmailService) IsAuthorized(ctx context.Context, email string) (bool, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	if s.file != nil {
		ok, err := s.file.Contains(email)
		if err != nil {
			s.log.Warn("read authorized emails file", zap.Error(err))
		}
		if ok {
			return true, nil
		}
	}
	return s.store.Exists(ctx, email)
}

// List returns the database entries, newest first.
func (s *AuthorizedEmailService) List(ctx context.Context) ([]model.AuthorizedEmail, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch authorized emails", fmt.Errorf("list authorized emails: %w", err))
	}
	return out, nil
}

func (s *AuthorizedEmailService) Add(ctx context.Context, email, addedBy string) (*model.AuthorizedEmail, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if err := s.validator.Validate(ctx, email); err != nil {
		return nil, err
	}
	if addedBy == "" {
		addedBy = model.DefaultAddedBy
	}

	exists, err := s.store.Exists(ctx, email)
	if err != nil {
		return nil, apperr.Internal("Failed to add authorized email", fmt.Errorf("check authorized email: %w", err))
	}
	if exists {
		return nil, ErrAuthorizedEmailExists
	}

	e, err := s.store.Create(ctx, email, addedBy)
	if errors.Is(err, apperr.ErrDuplicate) {
		return nil, ErrAuthorizedEmailExists
	}
	if err != nil {
		return nil, apperr.Internal("Failed to add authorized email", fmt.Errorf("create authorized email: %w", err))
	}
	s.log.Info("email authorized", zap.String("email", email), zap.String("added_by", addedBy))
	return e, nil
}

func (s *AuthorizedEmailService) Remove(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return ErrAuthorizedEmailNotFound
	}
	if err != nil {
		return apperr.Internal("Failed to remove authorized email", fmt.Errorf("delete authorized email: %w", err))
	}
	s.log.Info("email authorization removed", zap.String("id", id))
	return nil
}
