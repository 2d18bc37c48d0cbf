package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// GradeRepository handles persistence of assessment grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = "id, enrollment_id, assessment_id, scored_grade, created_at, updated_at"

// ListByEnrollment returns all grades recorded for an enrollment.
func (r *GradeRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentGrade, error) {
	query := fmt.Sprintf("SELECT %s FROM assessment_grades WHERE enrollment_id = $1 ORDER BY created_at", gradeColumns)
	var grades []models.AssessmentGrade
	if err := r.db.SelectContext(ctx, &grades, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list assessment grades: %w", err)
	}
	return grades, nil
}

// Create persists a new assessment grade. The service layer serializes
// submissions per enrollment, so duplicates are rejected before this runs.
func (r *GradeRepository) Create(ctx context.Context, grade *models.AssessmentGrade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now

	const query = `INSERT INTO assessment_grades (id, enrollment_id, assessment_id, scored_grade, created_at, updated_at)
        VALUES (:id, :enrollment_id, :assessment_id, :scored_grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create assessment grade: %w", err)
	}
	return nil
}

// Delete removes a recorded grade.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assessment_grades WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment grade: %w", err)
	}
	return nil
}
