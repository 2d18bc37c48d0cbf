package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// AssessmentRepository handles persistence of section assessments.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = "id, section_id, title, type, weightage, total_grade, passing_grade, exam_date, exam_start_time, duration_minutes, created_at, updated_at"

// ListBySection returns a section's assessments ordered by creation.
func (r *AssessmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error) {
	query := fmt.Sprintf("SELECT %s FROM assessments WHERE section_id = $1 ORDER BY created_at", assessmentColumns)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}

// FindByID returns an assessment by identifier.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf("SELECT %s FROM assessments WHERE id = $1 LIMIT 1", assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// Create persists a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now

	const query = `INSERT INTO assessments (id, section_id, title, type, weightage, total_grade, passing_grade, exam_date, exam_start_time, duration_minutes, created_at, updated_at)
        VALUES (:id, :section_id, :title, :type, :weightage, :total_grade, :passing_grade, :exam_date, :exam_start_time, :duration_minutes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// Delete removes an assessment and its recorded grades.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete assessment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_grades WHERE assessment_id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment grades: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete assessment: %w", err)
	}
	return nil
}
