package models

import (
	"time"

	"github.com/campuskit/campus-core-api/internal/grading"
)

// Enrollment captures a student's registration to a course section.
type Enrollment struct {
	ID          string         `db:"id" json:"id"`
	StudentID   string         `db:"student_id" json:"student_id"`
	SectionID   string         `db:"section_id" json:"section_id"`
	Status      grading.Status `db:"status" json:"status"`
	FinalGrade  *float64       `db:"final_grade" json:"final_grade,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SectionID string
	Status    grading.Status
	Page      int
	PageSize  int
}
