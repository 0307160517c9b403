package model

import (
	"strings"
	"time"
)

type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	OTP               *string    `json:"-"` // never JSON-encode
	OTPExpiresAt      *time.Time `json:"-"`
	IsVerified        bool       `json:"isVerified"`
	HasSubmittedMarks bool       `json:"hasSubmittedMarks"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// HasPendingOTP reports whether a code is stored, expired or not.
func (u *User) HasPendingOTP() bool {
	return u.OTP != nil && u.OTPExpiresAt != nil
}

// NormalizeEmail is the canonical form used for every email key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
