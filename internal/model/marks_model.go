package model

import (
	"fmt"
	"time"
)

const (
	TheoryWeight = 0.75
	LabWeight    = 0.25

	MinMark = 0.0
	MaxMark = 100.0
)

type Marks struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"studentId"`
	TheoryComponent float64   `json:"theoryComponent"`
	LabComponent    float64   `json:"labComponent"`
	FatMarks        float64   `json:"fatMarks"`
	OverallMarks    float64   `json:"overallMarks"`
	AddedBy         string    `json:"addedBy"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Composite is the weighted overall score. It is never taken from input.
func Composite(theory, lab float64) float64 {
	return TheoryWeight*theory + LabWeight*lab
}

// Recompute refreshes OverallMarks from the current components. Every write
// path calls it before persisting.
func (m *Marks) Recompute() {
	m.OverallMarks = Composite(m.TheoryComponent, m.LabComponent)
}

// StudentIDFor formats the n-th student identifier: STU001, STU002, ...
func StudentIDFor(n int64) string {
	return fmt.Sprintf("STU%03d", n)
}

// OverallRow is the public projection used by the overall view.
type OverallRow struct {
	StudentID       string  `json:"studentId"`
	TheoryComponent float64 `json:"theoryComponent"`
	LabComponent    float64 `json:"labComponent"`
	OverallMarks    float64 `json:"overallMarks"`
}

// FatRow is the public projection used by the final-assessment view.
type FatRow struct {
	StudentID string  `json:"studentId"`
	FatMarks  float64 `json:"fatMarks"`
}
