package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/mail"
	"MarksAPI/internal/model"
	"MarksAPI/internal/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticGate map[string]bool

func (g staticGate) IsAuthorized(_ context.Context, email string) (bool, error) {
	return g[email], nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) last() mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(userID, email string) (string, time.Time, error) {
	return "token-" + userID, time.Unix(0, 0), nil
}

type otpFixture struct {
	svc    *OTPService
	store  *memstore.Store
	sender *recordingSender
	clock  time.Time
	codes  int
}

func (f *otpFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func newOTPFixture(t *testing.T) *otpFixture {
	t.Helper()
	f := &otpFixture{
		store:  memstore.New(),
		sender: &recordingSender{},
		clock:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	gate := staticGate{"student@example.com": true}
	f.svc = NewOTPService(f.store.Users(), gate, f.sender, fakeTokens{},
		OTPOptions{TTL: 10 * time.Minute, ResendWindow: time.Minute, Provider: "test"}, zap.NewNop())
	f.svc.now = func() time.Time { return f.clock }
	f.svc.newCode = func() (string, error) {
		f.codes++
		return fmt.Sprintf("%06d", f.codes), nil
	}
	return f
}

func TestGenerateCode(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestRequestOTP_EmailRequired(t *testing.T) {
	f := newOTPFixture(t)
	err := f.svc.RequestOTP(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmailRequired)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRequestOTP_NotAuthorizedTouchesNothing(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	err := f.svc.RequestOTP(ctx, "stranger@example.com")
	assert.ErrorIs(t, err, ErrEmailNotAuthorized)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.store.Users().GetByEmail(ctx, "stranger@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.sender.sent)
}

func TestRequestOTP_StoresAndSendsCode(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestOTP(ctx, "  Student@Example.com "))

	u, err := f.store.Users().GetByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	require.True(t, u.HasPendingOTP())
	assert.Equal(t, "000001", *u.OTP)
	assert.Equal(t, f.clock.Add(10*time.Minute), *u.OTPExpiresAt)
	assert.False(t, u.IsVerified)

	msg := f.sender.last()
	assert.Equal(t, "student@example.com", msg.To)
	assert.True(t, strings.Contains(msg.HTML, "000001"))
}

func TestRequestOTP_ResendWindow(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	email := "student@example.com"

	require.NoError(t, f.svc.RequestOTP(ctx, email))

	f.advance(30 * time.Second)
	err := f.svc.RequestOTP(ctx, email)
	assert.ErrorIs(t, err, ErrOTPTooSoon)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))

	f.advance(29 * time.Second)
	assert.ErrorIs(t, f.svc.RequestOTP(ctx, email), ErrOTPTooSoon)

	f.advance(2 * time.Second)
	require.NoError(t, f.svc.RequestOTP(ctx, email))

	u, err := f.store.Users().GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "000002", *u.OTP, "a new request replaces the pending code")
	assert.Len(t, f.sender.sent, 2)
}

func TestRequestOTP_PersistedWindowSurvivesRestart(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	// A second service over the same store has a fresh limiter.
	restarted := NewOTPService(f.store.Users(), staticGate{"student@example.com": true}, f.sender, fakeTokens{},
		OTPOptions{TTL: 10 * time.Minute, ResendWindow: time.Minute}, zap.NewNop())
	restarted.now = func() time.Time { return f.clock.Add(10 * time.Second) }

	assert.ErrorIs(t, restarted.RequestOTP(ctx, "student@example.com"), ErrOTPTooSoon)
}

func TestRequestOTP_LimiterCoversVerifiedUser(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	email := "student@example.com"

	require.NoError(t, f.svc.RequestOTP(ctx, email))
	_, err := f.svc.VerifyOTP(ctx, email, "000001")
	require.NoError(t, err)

	f.advance(10 * time.Second)
	assert.ErrorIs(t, f.svc.RequestOTP(ctx, email), ErrOTPTooSoon)
}

func TestRequestOTP_DeliveryFailureKeepsCode(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	f.sender.err = errors.New("smtp down")

	err := f.svc.RequestOTP(ctx, "student@example.com")
	require.Error(t, err)
	assert.Equal(t, apperr.KindDelivery, apperr.KindOf(err))
	assert.Equal(t, "Failed to send OTP. Please try again.", apperr.MessageOf(err))

	res, err := f.svc.VerifyOTP(ctx, "student@example.com", "000001")
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)
}

func TestVerifyOTP_FieldsRequired(t *testing.T) {
	f := newOTPFixture(t)
	_, err := f.svc.VerifyOTP(context.Background(), "student@example.com", " ")
	assert.ErrorIs(t, err, ErrOTPFieldsRequired)
	_, err = f.svc.VerifyOTP(context.Background(), "", "123456")
	assert.ErrorIs(t, err, ErrOTPFieldsRequired)
}

func TestVerifyOTP_UserNotFound(t *testing.T) {
	f := newOTPFixture(t)
	_, err := f.svc.VerifyOTP(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestVerifyOTP_ExpiredEvenWithCorrectCode(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	f.advance(10*time.Minute + time.Second)
	_, err := f.svc.VerifyOTP(ctx, "student@example.com", "000001")
	assert.ErrorIs(t, err, ErrOTPExpired)
}

func TestVerifyOTP_WrongCodeKeepsPending(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	_, err := f.svc.VerifyOTP(ctx, "student@example.com", "999999")
	assert.ErrorIs(t, err, ErrOTPInvalid)

	u, err := f.store.Users().GetByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	assert.True(t, u.HasPendingOTP())
	assert.False(t, u.IsVerified)

	_, err = f.svc.VerifyOTP(ctx, "student@example.com", "000001")
	assert.NoError(t, err)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	res, err := f.svc.VerifyOTP(ctx, "Student@example.com", "000001")
	require.NoError(t, err)
	assert.Equal(t, "token-"+res.User.ID, res.Token)
	assert.True(t, res.User.IsVerified)
	assert.False(t, res.User.HasPendingOTP())

	_, err = f.svc.VerifyOTP(ctx, "student@example.com", "000001")
	assert.ErrorIs(t, err, ErrOTPNotPending)
}

func TestVerifyOTP_ConcurrentOnlyOneWins(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.VerifyOTP(ctx, "student@example.com", "000001")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

// flakyUsers fails the first failUpserts calls to UpsertOTP.
type flakyUsers struct {
	UserStore
	failUpserts int
}

func (u *flakyUsers) UpsertOTP(ctx context.Context, email, code string, expiresAt time.Time) (*model.User, error) {
	if u.failUpserts > 0 {
		u.failUpserts--
		return nil, errors.New("write conflict")
	}
	return u.UserStore.UpsertOTP(ctx, email, code, expiresAt)
}

func TestRequestOTP_StoreFailureDoesNotSpendWindow(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	f.svc.users = &flakyUsers{UserStore: f.store.Users(), failUpserts: 1}

	err := f.svc.RequestOTP(ctx, "student@example.com")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to send OTP. Please try again.", apperr.MessageOf(err))
	assert.Empty(t, f.sender.sent)

	f.advance(5 * time.Second)
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))

	u, err := f.store.Users().GetByEmail(ctx, "student@example.com")
	require.NoError(t, err)
	assert.True(t, u.HasPendingOTP())
	assert.Len(t, f.sender.sent, 1)
}

func TestRequestOTP_CodeFailureDoesNotSpendWindow(t *testing.T) {
	f := newOTPFixture(t)
	ctx := context.Background()
	next := f.svc.newCode
	f.svc.newCode = func() (string, error) { return "", errors.New("entropy exhausted") }

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(f.svc.RequestOTP(ctx, "student@example.com")))

	f.svc.newCode = next
	require.NoError(t, f.svc.RequestOTP(ctx, "student@example.com"))
}

func TestVerifyOTP_StoreFailureHidesCause(t *testing.T) {
	f := newOTPFixture(t)
	f.svc.users = failingLookup{f.store.Users()}

	_, err := f.svc.VerifyOTP(context.Background(), "student@example.com", "000001")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to verify OTP. Please try again.", apperr.MessageOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

type failingLookup struct{ UserStore }

func (failingLookup) GetByEmail(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestOTPLimiter(t *testing.T) {
	l := newOTPLimiter(time.Minute)
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	_, ok := l.Reserve("a@x.com", t0)
	assert.True(t, ok)
	_, ok = l.Reserve("a@x.com", t0.Add(59*time.Second))
	assert.False(t, ok)
	_, ok = l.Reserve("b@x.com", t0.Add(59*time.Second))
	assert.True(t, ok, "limits are per email")
	_, ok = l.Reserve("a@x.com", t0.Add(61*time.Second))
	assert.True(t, ok)

	// Both entries are idle for more than a window; the next call sweeps them.
	_, ok = l.Reserve("c@x.com", t0.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 1, l.size())
}

func TestOTPLimiter_ReleaseReturnsToken(t *testing.T) {
	l := newOTPLimiter(time.Minute)
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	release, ok := l.Reserve("a@x.com", t0)
	require.True(t, ok)
	release()

	release, ok = l.Reserve("a@x.com", t0.Add(5*time.Second))
	require.True(t, ok)
	_ = release

	_, ok = l.Reserve("a@x.com", t0.Add(10*time.Second))
	assert.False(t, ok, "a kept reservation still holds the window")
}
