package services

import (
	"context"
	"net/mail"
	"regexp"

	"MarksAPI/internal/apperr"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var ErrInvalidEmail = apperr.Validation("Please provide a valid email address")

type EmailValidator interface {
	Validate(ctx context.Context, email string) error
}

// SyntaxValidator accepts plain addr-spec emails only.
type SyntaxValidator struct{}

func (SyntaxValidator) Validate(_ context.Context, email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ChainValidator runs validators in order and returns the first failure.
type ChainValidator []EmailValidator

func (c ChainValidator) Validate(ctx context.Context, email string) error {
	for _, v := range c {
		if err := v.Validate(ctx, email); err != nil {
			return err
		}
	}
	return nil
}
