// Package storetest holds the behavioural contract every storage backend
// must satisfy. Backend packages run it against their own stores.
package storetest

import (
	"context"
	"testing"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"
	"MarksAPI/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stores must start empty.
type Stores struct {
	Users  services.UserStore
	Marks  services.MarksStore
	Emails services.AuthorizedEmailStore
}

func Run(t *testing.T, s Stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, s.Users) })
	t.Run("marks", func(t *testing.T) { testMarks(t, s.Marks) })
	t.Run("authorized emails", func(t *testing.T) { testEmails(t, s.Emails) })
}

func testUsers(t *testing.T, users services.UserStore) {
	ctx := context.Background()
	email := "contract@example.com"

	_, err := users.GetByEmail(ctx, email)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	exp := time.Now().Add(10 * time.Minute).Truncate(time.Millisecond)
	u, err := users.UpsertOTP(ctx, email, "111111", exp)
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.HasPendingOTP())
	assert.Equal(t, "111111", *u.OTP)
	assert.WithinDuration(t, exp, *u.OTPExpiresAt, time.Millisecond)
	assert.False(t, u.IsVerified)
	assert.False(t, u.HasSubmittedMarks)

	again, err := users.UpsertOTP(ctx, email, "222222", exp.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID, "upsert keeps the identity")
	assert.Equal(t, "222222", *again.OTP)

	_, err = users.ConsumeOTP(ctx, u.ID, "111111")
	require.ErrorIs(t, err, apperr.ErrNotFound, "a replaced code no longer consumes")

	verified, err := users.ConsumeOTP(ctx, u.ID, "222222")
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
	assert.False(t, verified.HasPendingOTP())

	_, err = users.ConsumeOTP(ctx, u.ID, "222222")
	require.ErrorIs(t, err, apperr.ErrNotFound, "codes are single use")

	require.NoError(t, users.SetSubmittedMarks(ctx, email))
	got, err := users.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.True(t, got.HasSubmittedMarks)
	assert.True(t, got.IsVerified)
	assert.Nil(t, got.OTP)
}

func newMarks(studentID, owner string, theory, lab, fat float64) *model.Marks {
	m := &model.Marks{
		StudentID:       studentID,
		TheoryComponent: theory,
		LabComponent:    lab,
		FatMarks:        fat,
		AddedBy:         owner,
	}
	m.Recompute()
	return m
}

func testMarks(t *testing.T, marks services.MarksStore) {
	ctx := context.Background()

	n, err := marks.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = marks.GetByOwner(ctx, "a@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	a := newMarks("STU001", "a@example.com", 80, 90, 70)
	require.NoError(t, marks.Create(ctx, a))
	require.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	require.ErrorIs(t, marks.Create(ctx, newMarks("STU001", "other@example.com", 1, 1, 1)), apperr.ErrDuplicate)
	require.ErrorIs(t, marks.Create(ctx, newMarks("STU009", "a@example.com", 1, 1, 1)), apperr.ErrDuplicate)

	require.NoError(t, marks.Create(ctx, newMarks("STU002", "b@example.com", 20, 20, 95)))
	require.NoError(t, marks.Create(ctx, newMarks("STU003", "c@example.com", 100, 100, 5)))

	n, err = marks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	got, err := marks.GetByOwner(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "STU001", got.StudentID)
	assert.Equal(t, 82.5, got.OverallMarks)

	got.TheoryComponent, got.LabComponent, got.FatMarks = 10, 10, 10
	got.Recompute()
	require.NoError(t, marks.Update(ctx, got))

	got, err = marks.GetByOwner(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.OverallMarks)
	assert.Equal(t, a.ID, got.ID)

	byOverall, err := marks.ListByOverall(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"STU001", "STU002", "STU003"}, studentIDs(byOverall))

	byFat, err := marks.ListByFat(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"STU003", "STU001", "STU002"}, studentIDs(byFat))

	byID, err := marks.ListByStudentID(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"STU001", "STU002", "STU003"}, studentIDs(byID))
}

func studentIDs(ms []model.Marks) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.StudentID
	}
	return out
}

func testEmails(t *testing.T, emails services.AuthorizedEmailStore) {
	ctx := context.Background()

	list, err := emails.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	first, err := emails.Create(ctx, "first@example.com", "admin@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "admin@example.com", first.AddedBy)

	// Distinct timestamps on every backend's clock resolution.
	time.Sleep(20 * time.Millisecond)
	_, err = emails.Create(ctx, "second@example.com", model.DefaultAddedBy)
	require.NoError(t, err)

	_, err = emails.Create(ctx, "first@example.com", "admin@example.com")
	require.ErrorIs(t, err, apperr.ErrDuplicate)

	ok, err := emails.Exists(ctx, "first@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = emails.Exists(ctx, "missing@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err = emails.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second@example.com", list[0].Email, "newest first")
	assert.Equal(t, "first@example.com", list[1].Email)

	require.NoError(t, emails.Delete(ctx, first.ID))
	require.ErrorIs(t, emails.Delete(ctx, first.ID), apperr.ErrNotFound)
	require.ErrorIs(t, emails.Delete(ctx, "malformed-id"), apperr.ErrNotFound)

	ok, err = emails.Exists(ctx, "first@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
