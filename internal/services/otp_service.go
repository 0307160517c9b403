package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/mail"
	"MarksAPI/internal/metrics"
	"MarksAPI/internal/model"

	"go.uber.org/zap"
)

var (
	ErrEmailRequired      = apperr.Validation("Email is required")
	ErrEmailNotAuthorized = apperr.Forbidden("This email is not authorized. Please contact the administrator.")
	ErrOTPTooSoon         = apperr.RateLimited("OTP already sent. Please wait before requesting again.")
	ErrOTPFieldsRequired  = apperr.Validation("Email and OTP are required")
	ErrUserNotFound       = apperr.NotFound("User not found")
	ErrOTPNotPending      = apperr.Validation("No OTP pending. Please request a new one.")
	ErrOTPExpired         = apperr.Validation("OTP has expired. Please request a new one.")
	ErrOTPInvalid         = apperr.Validation("Invalid OTP")
)

const (
	sendFailedMsg   = "Failed to send OTP. Please try again."
	verifyFailedMsg = "Failed to verify OTP. Please try again."
)

// Authorizer decides who may request an OTP.
type Authorizer interface {
	IsAuthorized(ctx context.Context, email string) (bool, error)
}

// TokenIssuer mints the session credential handed out after verification.
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, time.Time, error)
}

type OTPOptions struct {
	TTL          time.Duration
	ResendWindow time.Duration
	// Provider labels delivery metrics.
	Provider string
}

type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

type OTPService struct {
	users   UserStore
	gate    Authorizer
	sender  mail.Sender
	tokens  TokenIssuer
	limiter *otpLimiter
	opts    OTPOptions
	log     *zap.Logger

	now     func() time.Time
	newCode func() (string, error)
}

func NewOTPService(users UserStore, gate Authorizer, sender mail.Sender, tokens TokenIssuer, opts OTPOptions, log *zap.Logger) *OTPService {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.ResendWindow <= 0 {
		opts.ResendWindow = time.Minute
	}
	if opts.Provider == "" {
		opts.Provider = "unknown"
	}
	return &OTPService{
		users:   users,
		gate:    gate,
		sender:  sender,
		tokens:  tokens,
		limiter: newOTPLimiter(opts.ResendWindow),
		opts:    opts,
		log:     log.Named("otp"),
		now:     time.Now,
		newCode: generateCode,
	}
}

// generateCode returns a uniformly random 6-digit code, leading zeros kept.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// RequestOTP issues a fresh code for an authorized email and mails it.
func (s *OTPService) RequestOTP(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if email == "" {
		metrics.OTPRequests.WithLabelValues("invalid").Inc()
		return ErrEmailRequired
	}

	ok, err := s.gate.IsAuthorized(ctx, email)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return apperr.Internal(sendFailedMsg, fmt.Errorf("check authorization: %w", err))
	}
	if !ok {
		metrics.OTPRequests.WithLabelValues("forbidden").Inc()
		return ErrEmailNotAuthorized
	}

	now := s.now()
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if s.issuedWithinWindow(user, now) {
			metrics.OTPRequests.WithLabelValues("rate_limited").Inc()
			return ErrOTPTooSoon
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return apperr.Internal(sendFailedMsg, fmt.Errorf("load user: %w", err))
	}

	release, ok := s.limiter.Reserve(email, now)
	if !ok {
		metrics.OTPRequests.WithLabelValues("rate_limited").Inc()
		return ErrOTPTooSoon
	}

	// Nothing counts as issued until the code is stored.
	code, err := s.newCode()
	if err != nil {
		release()
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return apperr.Internal(sendFailedMsg, fmt.Errorf("generate otp: %w", err))
	}
	if _, err := s.users.UpsertOTP(ctx, email, code, now.Add(s.opts.TTL)); err != nil {
		release()
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return apperr.Internal(sendFailedMsg, fmt.Errorf("store otp: %w", err))
	}

	msg, err := mail.OTPMessage(email, code, s.opts.TTL)
	if err != nil {
		metrics.OTPRequests.WithLabelValues("error").Inc()
		return apperr.Internal(sendFailedMsg, fmt.Errorf("render otp email: %w", err))
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		metrics.EmailDeliveries.WithLabelValues(s.opts.Provider, "failed").Inc()
		metrics.OTPRequests.WithLabelValues("delivery_failed").Inc()
		s.log.Warn("otp delivery failed", zap.String("email", email), zap.Error(err))
		return apperr.Delivery(sendFailedMsg, err)
	}
	metrics.EmailDeliveries.WithLabelValues(s.opts.Provider, "sent").Inc()
	metrics.OTPRequests.WithLabelValues("sent").Inc()
	s.log.Info("otp sent", zap.String("email", email))
	return nil
}

// issuedWithinWindow is the persisted half of the resend policy. The issue
// time is derived from the stored expiry.
func (s *OTPService) issuedWithinWindow(u *model.User, now time.Time) bool {
	if !u.HasPendingOTP() || now.After(*u.OTPExpiresAt) {
		return false
	}
	issued := u.OTPExpiresAt.Add(-s.opts.TTL)
	return now.Sub(issued) < s.opts.ResendWindow
}

// VerifyOTP consumes a pending code and returns a session credential.
func (s *OTPService) VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = model.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrOTPFieldsRequired
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		metrics.OTPVerifications.WithLabelValues("not_found").Inc()
		return nil, ErrUserNotFound
	}
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return nil, apperr.Internal(verifyFailedMsg, fmt.Errorf("load user: %w", err))
	}

	if !user.HasPendingOTP() {
		metrics.OTPVerifications.WithLabelValues("not_pending").Inc()
		return nil, ErrOTPNotPending
	}
	if s.now().After(*user.OTPExpiresAt) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return nil, ErrOTPExpired
	}
	if subtle.ConstantTimeCompare([]byte(*user.OTP), []byte(code)) != 1 {
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrOTPInvalid
	}

	// A concurrent verification or a fresh request got there first.
	verified, err := s.users.ConsumeOTP(ctx, user.ID, code)
	if errors.Is(err, apperr.ErrNotFound) {
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return nil, ErrOTPInvalid
	}
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return nil, apperr.Internal(verifyFailedMsg, fmt.Errorf("consume otp: %w", err))
	}

	token, exp, err := s.tokens.GenerateToken(verified.ID, verified.Email)
	if err != nil {
		metrics.OTPVerifications.WithLabelValues("error").Inc()
		return nil, apperr.Internal(verifyFailedMsg, fmt.Errorf("issue token: %w", err))
	}
	metrics.OTPVerifications.WithLabelValues("ok").Inc()
	s.log.Info("otp verified", zap.String("email", email))
	return &VerifyResult{Token: token, ExpiresAt: exp, User: verified}, nil
}
