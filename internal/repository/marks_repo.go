package repository

import (
	"context"
	"time"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MarksRepository struct {
	DB *pgxpool.Pool
}

func NewMarksRepository(db *pgxpool.Pool) *MarksRepository {
	return &MarksRepository{DB: db}
}

const marksColumns = `id, student_id, theory_component, lab_component, fat_marks, overall_marks, added_by, created_at, updated_at`

func scanMarks(row rowScanner) (*model.Marks, error) {
	var m model.Marks
	if err := row.Scan(&m.ID, &m.StudentID, &m.TheoryComponent, &m.LabComponent, &m.FatMarks, &m.OverallMarks, &m.AddedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *MarksRepository) GetByOwner(ctx context.Context, email string) (*model.Marks, error) {
	query := `SELECT ` + marksColumns + ` FROM marks WHERE added_by=$1`
	return scanMarks(r.DB.QueryRow(ctx, query, email))
}

func (r *MarksRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM marks`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *MarksRepository) Create(ctx context.Context, m *model.Marks) error {
	m.ID = uuid.NewString()
	now := time.Now()
	query := `
		INSERT INTO marks (id, student_id, theory_component, lab_component, fat_marks, overall_marks, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at
	`
	err := r.DB.QueryRow(ctx, query, m.ID, m.StudentID, m.TheoryComponent, m.LabComponent, m.FatMarks, m.OverallMarks, m.AddedBy, now).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	return translate(err)
}

func (r *MarksRepository) Update(ctx context.Context, m *model.Marks) error {
	m.UpdatedAt = time.Now()
	tag, err := r.DB.Exec(ctx, `
		UPDATE marks
		SET theory_component=$2, lab_component=$3, fat_marks=$4, overall_marks=$5, updated_at=$6
		WHERE id=$1
	`, m.ID, m.TheoryComponent, m.LabComponent, m.FatMarks, m.OverallMarks, m.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *MarksRepository) ListByOverall(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, `ORDER BY overall_marks ASC, student_id ASC`)
}

func (r *MarksRepository) ListByFat(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, `ORDER BY fat_marks ASC, student_id ASC`)
}

func (r *MarksRepository) ListByStudentID(ctx context.Context) ([]model.Marks, error) {
	return r.list(ctx, `ORDER BY student_id ASC`)
}

func (r *MarksRepository) list(ctx context.Context, orderBy string) ([]model.Marks, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+marksColumns+` FROM marks `+orderBy)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Marks{}
	for rows.Next() {
		m, err := scanMarks(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
