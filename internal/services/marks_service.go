package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"MarksAPI/internal/apperr"
	"MarksAPI/internal/metrics"
	"MarksAPI/internal/model"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	ErrMarksFieldsRequired = apperr.Validation("All fields are required: theoryComponent, labComponent, fatMarks")
	ErrMarksOutOfRange     = apperr.Validation("All marks must be between 0 and 100")
	ErrNoMarks             = apperr.NotFound("No marks found")
	ErrMarksConflict       = apperr.Conflict("Marks were submitted concurrently. Please try again.")
)

const (
	addFailedMsg     = "Failed to add marks"
	overallFailedMsg = "Failed to fetch marks"
	fatFailedMsg     = "Failed to fetch FAT marks"
	mineFailedMsg    = "Failed to fetch your marks"
	exportFailedMsg  = "Failed to export marks"
)

// Owner identifies the authenticated submitter.
type Owner struct {
	UserID string
	Email  string
}

// MarksInput uses pointers so a missing field differs from an explicit 0.
type MarksInput struct {
	TheoryComponent *float64 `json:"theoryComponent"`
	LabComponent    *float64 `json:"labComponent"`
	FatMarks        *float64 `json:"fatMarks"`
}

type OverallView struct {
	Data    []model.OverallRow `json:"data"`
	Average float64            `json:"average"`
	Count   int                `json:"count"`
}

type FatView struct {
	Data    []model.FatRow `json:"data"`
	Average float64        `json:"average"`
	Count   int            `json:"count"`
}

type MarksService struct {
	marks MarksStore
	users UserStore
	log   *zap.Logger
}

func NewMarksService(marks MarksStore, users UserStore, log *zap.Logger) *MarksService {
	return &MarksService{marks: marks, users: users, log: log.Named("marks")}
}

func validMark(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= model.MinMark && v <= model.MaxMark
}

// Submit creates the owner's record or overwrites its three inputs. created
// reports which one happened.
func (s *MarksService) Submit(ctx context.Context, owner Owner, in MarksInput) (m *model.Marks, created bool, err error) {
	if in.TheoryComponent == nil || in.LabComponent == nil || in.FatMarks == nil {
		return nil, false, ErrMarksFieldsRequired
	}
	theory, lab, fat := *in.TheoryComponent, *in.LabComponent, *in.FatMarks
	if !validMark(theory) || !validMark(lab) || !validMark(fat) {
		return nil, false, ErrMarksOutOfRange
	}

	existing, err := s.marks.GetByOwner(ctx, owner.Email)
	switch {
	case err == nil:
		existing.TheoryComponent, existing.LabComponent, existing.FatMarks = theory, lab, fat
		existing.Recompute()
		if err := s.marks.Update(ctx, existing); err != nil {
			return nil, false, apperr.Internal(addFailedMsg, fmt.Errorf("update marks: %w", err))
		}
		metrics.Submissions.WithLabelValues("update").Inc()
		return existing, false, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, false, apperr.Internal(addFailedMsg, fmt.Errorf("load marks: %w", err))
	}

	n, err := s.marks.Count(ctx)
	if err != nil {
		return nil, false, apperr.Internal(addFailedMsg, fmt.Errorf("count marks: %w", err))
	}
	m = &model.Marks{
		StudentID:       model.StudentIDFor(n + 1),
		TheoryComponent: theory,
		LabComponent:    lab,
		FatMarks:        fat,
		AddedBy:         owner.Email,
	}
	m.Recompute()
	if err := s.marks.Create(ctx, m); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, false, ErrMarksConflict
		}
		return nil, false, apperr.Internal(addFailedMsg, fmt.Errorf("create marks: %w", err))
	}
	metrics.Submissions.WithLabelValues("create").Inc()

	// The record is already stored; a failed flag update is not worth failing
	// the request over.
	if err := s.users.SetSubmittedMarks(ctx, owner.Email); err != nil {
		s.log.Error("set hasSubmittedMarks", zap.String("email", owner.Email), zap.Error(err))
	}
	return m, true, nil
}

// Overall lists every record ascending by composite score.
func (s *MarksService) Overall(ctx context.Context) (*OverallView, error) {
	all, err := s.marks.ListByOverall(ctx)
	if err != nil {
		return nil, apperr.Internal(overallFailedMsg, fmt.Errorf("list marks: %w", err))
	}
	v := &OverallView{Data: make([]model.OverallRow, 0, len(all)), Count: len(all)}
	var sum float64
	for _, m := range all {
		v.Data = append(v.Data, model.OverallRow{
			StudentID:       m.StudentID,
			TheoryComponent: m.TheoryComponent,
			LabComponent:    m.LabComponent,
			OverallMarks:    m.OverallMarks,
		})
		sum += m.OverallMarks
	}
	v.Average = average(sum, len(all))
	return v, nil
}

// Fat lists every record ascending by final-assessment score.
func (s *MarksService) Fat(ctx context.Context) (*FatView, error) {
	all, err := s.marks.ListByFat(ctx)
	if err != nil {
		return nil, apperr.Internal(fatFailedMsg, fmt.Errorf("list marks: %w", err))
	}
	v := &FatView{Data: make([]model.FatRow, 0, len(all)), Count: len(all)}
	var sum float64
	for _, m := range all {
		v.Data = append(v.Data, model.FatRow{StudentID: m.StudentID, FatMarks: m.FatMarks})
		sum += m.FatMarks
	}
	v.Average = average(sum, len(all))
	return v, nil
}

func (s *MarksService) Mine(ctx context.Context, email string) (*model.Marks, error) {
	m, err := s.marks.GetByOwner(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrNoMarks
	}
	if err != nil {
		return nil, apperr.Internal(mineFailedMsg, fmt.Errorf("load marks: %w", err))
	}
	return m, nil
}

// average is the mean rounded to 2 decimals, 0 for no rows.
func average(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

const exportSheet = "Marks"

var exportHeader = []string{"Student ID", "Theory", "Lab", "Overall", "FAT", "Added By", "Updated At"}

// ExportXLSX writes every record, ordered by student ID, as a workbook.
func (s *MarksService) ExportXLSX(ctx context.Context, w io.Writer) error {
	all, err := s.marks.ListByStudentID(ctx)
	if err != nil {
		return apperr.Internal(exportFailedMsg, fmt.Errorf("list marks: %w", err))
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := writeMarksSheet(f, all); err != nil {
		return apperr.Internal(exportFailedMsg, err)
	}
	if err := f.Write(w); err != nil {
		return apperr.Internal(exportFailedMsg, fmt.Errorf("write workbook: %w", err))
	}
	s.log.Info("marks exported", zap.Int("rows", len(all)))
	return nil
}

func writeMarksSheet(f *excelize.File, all []model.Marks) error {
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return fmt.Errorf("header range: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.AutoFilter(exportSheet, "A1:"+lastCol+"1", nil); err != nil {
		return fmt.Errorf("auto filter: %w", err)
	}

	for i, m := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		row := []interface{}{
			m.StudentID,
			m.TheoryComponent,
			m.LabComponent,
			m.OverallMarks,
			m.FatMarks,
			m.AddedBy,
			m.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "E", 12); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "F", "G", 28); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	return nil
}
