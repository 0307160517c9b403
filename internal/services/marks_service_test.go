package services

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"
	"MarksAPI/internal/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func f64(v float64) *float64 { return &v }

func input(theory, lab, fat float64) MarksInput {
	return MarksInput{TheoryComponent: f64(theory), LabComponent: f64(lab), FatMarks: f64(fat)}
}

func newMarksFixture(t *testing.T) (*MarksService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return NewMarksService(store.Marks(), store.Users(), zap.NewNop()), store
}

// seedUser creates the user record the way a verified login would.
func seedUser(t *testing.T, store *memstore.Store, email string) Owner {
	t.Helper()
	u, err := store.Users().UpsertOTP(context.Background(), email, "000000", time.Now().Add(time.Minute))
	require.NoError(t, err)
	return Owner{UserID: u.ID, Email: email}
}

func TestSubmit_Validation(t *testing.T) {
	svc, store := newMarksFixture(t)
	owner := seedUser(t, store, "a@example.com")
	ctx := context.Background()

	cases := []struct {
		name string
		in   MarksInput
		want error
	}{
		{"missing theory", MarksInput{LabComponent: f64(1), FatMarks: f64(1)}, ErrMarksFieldsRequired},
		{"missing fat", MarksInput{TheoryComponent: f64(1), LabComponent: f64(1)}, ErrMarksFieldsRequired},
		{"negative", input(-1, 50, 50), ErrMarksOutOfRange},
		{"above max", input(50, 100.01, 50), ErrMarksOutOfRange},
		{"fat above max", input(50, 50, 101), ErrMarksOutOfRange},
		{"nan", input(math.NaN(), 50, 50), ErrMarksOutOfRange},
		{"inf", input(50, math.Inf(1), 50), ErrMarksOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Submit(ctx, owner, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	n, err := store.Marks().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected input stores nothing")
}

func TestSubmit_BoundsInclusive(t *testing.T) {
	svc, store := newMarksFixture(t)
	owner := seedUser(t, store, "a@example.com")

	m, created, err := svc.Submit(context.Background(), owner, input(0, 100, 100))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 25.0, m.OverallMarks)
}

func TestSubmit_CreateThenUpdate(t *testing.T) {
	svc, store := newMarksFixture(t)
	ctx := context.Background()
	owner := seedUser(t, store, "a@example.com")

	m, created, err := svc.Submit(ctx, owner, input(80, 90, 70))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "STU001", m.StudentID)
	assert.Equal(t, 82.5, m.OverallMarks)
	assert.Equal(t, "a@example.com", m.AddedBy)

	u, err := store.Users().GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, u.HasSubmittedMarks)

	updated, created, err := svc.Submit(ctx, owner, input(60, 40, 55))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m.ID, updated.ID)
	assert.Equal(t, "STU001", updated.StudentID)
	assert.Equal(t, 55.0, updated.OverallMarks)
	assert.Equal(t, 55.0, updated.FatMarks)

	n, err := store.Marks().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSubmit_SequentialStudentIDs(t *testing.T) {
	svc, store := newMarksFixture(t)
	ctx := context.Background()

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		m, _, err := svc.Submit(ctx, seedUser(t, store, email), input(50, 50, 50))
		require.NoError(t, err)
		assert.Equal(t, model.StudentIDFor(int64(i+1)), m.StudentID)
	}
}

// duplicatingMarks simulates losing the first-submission race.
type duplicatingMarks struct {
	*memstore.MarksRepository
}

func (duplicatingMarks) Create(context.Context, *model.Marks) error { return apperr.ErrDuplicate }

func TestSubmit_ConcurrentFirstSubmissionConflicts(t *testing.T) {
	store := memstore.New()
	svc := NewMarksService(duplicatingMarks{store.Marks()}, store.Users(), zap.NewNop())

	_, _, err := svc.Submit(context.Background(), Owner{Email: "a@example.com"}, input(1, 2, 3))
	assert.ErrorIs(t, err, ErrMarksConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestViews(t *testing.T) {
	svc, store := newMarksFixture(t)
	ctx := context.Background()

	empty, err := svc.Overall(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Average)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Data)

	// Composites 75, 25, 33; FAT 10, 90, 40.
	for _, s := range []struct {
		email          string
		theory, lab, f float64
	}{
		{"a@example.com", 100, 0, 10},
		{"b@example.com", 0, 100, 90},
		{"c@example.com", 33, 33, 40},
	} {
		_, _, err := svc.Submit(ctx, seedUser(t, store, s.email), input(s.theory, s.lab, s.f))
		require.NoError(t, err)
	}

	overall, err := svc.Overall(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, overall.Count)
	assert.Equal(t, 44.33, overall.Average)
	require.Len(t, overall.Data, 3)
	assert.Equal(t, []float64{25, 33, 75}, []float64{
		overall.Data[0].OverallMarks, overall.Data[1].OverallMarks, overall.Data[2].OverallMarks,
	})
	assert.Equal(t, "STU002", overall.Data[0].StudentID)

	fat, err := svc.Fat(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fat.Count)
	assert.Equal(t, 46.67, fat.Average)
	assert.Equal(t, []model.FatRow{
		{StudentID: "STU001", FatMarks: 10},
		{StudentID: "STU003", FatMarks: 40},
		{StudentID: "STU002", FatMarks: 90},
	}, fat.Data)
}

func TestMine(t *testing.T) {
	svc, store := newMarksFixture(t)
	ctx := context.Background()

	_, err := svc.Mine(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrNoMarks)

	_, _, err = svc.Submit(ctx, seedUser(t, store, "a@example.com"), input(80, 90, 70))
	require.NoError(t, err)

	m, err := svc.Mine(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 70.0, m.FatMarks)
	assert.Equal(t, 82.5, m.OverallMarks)
}

func TestExportXLSX(t *testing.T) {
	svc, store := newMarksFixture(t)
	ctx := context.Background()
	for _, email := range []string{"b@example.com", "a@example.com"} {
		_, _, err := svc.Submit(ctx, seedUser(t, store, email), input(80, 90, 70))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportXLSX(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "STU001", rows[1][0])
	assert.Equal(t, "b@example.com", rows[1][5])
	assert.Equal(t, "STU002", rows[2][0])
	assert.Equal(t, "a@example.com", rows[2][5])

	style, err := f.GetCellStyle(exportSheet, "G1")
	require.NoError(t, err)
	assert.NotZero(t, style, "header row is styled")
	width, err := f.GetColWidth(exportSheet, "F")
	require.NoError(t, err)
	assert.Equal(t, 28.0, width)
}

type failingExport struct{ MarksStore }

func (failingExport) ListByStudentID(context.Context) ([]model.Marks, error) {
	return nil, errors.New("cursor killed")
}

func TestExportXLSX_StoreFailure(t *testing.T) {
	store := memstore.New()
	svc := NewMarksService(failingExport{store.Marks()}, store.Users(), zap.NewNop())

	var buf bytes.Buffer
	err := svc.ExportXLSX(context.Background(), &buf)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "Failed to export marks", apperr.MessageOf(err))
	assert.Zero(t, buf.Len())
}
