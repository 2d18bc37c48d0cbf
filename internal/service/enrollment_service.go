package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/grading"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/repository"
	"github.com/campuskit/campus-core-api/internal/timetable"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

// EnrollmentRepo is the persistence surface the enrollment service needs.
type EnrollmentRepo interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status grading.Status, finalGrade *float64, completedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

// SectionFinder loads a single section with its meeting entries.
type SectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.CourseSection, error)
}

// EnrollRequest is the payload for registering a student to a section.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// CompletionResult reports the outcome of a completion attempt. A failed
// attempt is not an error: the enrollment simply stays in progress.
type CompletionResult struct {
	EnrollmentID string         `json:"enrollment_id"`
	Status       grading.Status `json:"status"`
	Passed       bool           `json:"passed"`
	FinalGrade   float64        `json:"final_grade"`
}

// EnrollmentService manages the enrollment lifecycle and books the section's
// schedule onto the student's calendar.
type EnrollmentService struct {
	repo        EnrollmentRepo
	sections    SectionFinder
	assessments AssessmentRepo
	grades      GradeRepo
	cache       CacheRepo
	board       *ScheduleBoard
	metrics     *MetricsService
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repo EnrollmentRepo, sections SectionFinder, assessments AssessmentRepo, grades GradeRepo, cache CacheRepo, board *ScheduleBoard, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	return &EnrollmentService{
		repo:        repo,
		sections:    sections,
		assessments: assessments,
		grades:      grades,
		cache:       cache,
		board:       board,
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
	}
}

// List returns enrollments matching the filter with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list enrollments")
	}
	return enrollments, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student to a section. The section's schedule window is
// added to the student's calendar first; a conflict there rejects the
// enrollment before anything is persisted.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	section, err := s.findSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsActive(ctx, req.StudentID, req.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in section")
	}

	w, err := s.board.SectionWindow(section)
	if err != nil {
		return nil, scheduleBuildError(err)
	}
	studentReg, err := s.board.Registry(ctx, timetable.OwnerStudent, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load student calendar")
	}

	if err := studentReg.Add(w); err != nil {
		var ce *timetable.ConflictError
		if errors.As(err, &ce) {
			s.metrics.RecordBookingConflict(string(ce.OwnerKind))
			return nil, appErrors.Clone(appErrors.ErrScheduleConflict, ce.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "book student calendar")
	}

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		SectionID: req.SectionID,
		Status:    grading.StatusPlanned,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		studentReg.Remove(w)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist enrollment")
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("section_id", req.SectionID))
	return enrollment, nil
}

// Start moves a planned enrollment into progress.
func (s *EnrollmentService) Start(ctx context.Context, id string) (*models.Enrollment, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	domain := grading.RestoreEnrollment(row.StudentID, row.SectionID, row.Status, nil)
	if err := domain.Start(); err != nil {
		return nil, transitionError(err)
	}

	if err := s.repo.UpdateStatus(ctx, id, grading.StatusInProgress, nil, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist status")
	}
	row.Status = grading.StatusInProgress
	return row, nil
}

// Withdraw terminates a planned or in-progress enrollment and frees the
// student's calendar slot.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	domain := grading.RestoreEnrollment(row.StudentID, row.SectionID, row.Status, nil)
	if err := domain.Withdraw(); err != nil {
		return nil, transitionError(err)
	}

	if err := s.repo.UpdateStatus(ctx, id, grading.StatusWithdrawn, nil, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist status")
	}

	s.releaseStudentBooking(ctx, row)
	s.invalidateReportCard(ctx, id)
	row.Status = grading.StatusWithdrawn
	s.logger.Info("enrollment withdrawn", zap.String("enrollment_id", id))
	return row, nil
}

// Complete attempts completion of an in-progress enrollment. When the
// rebuilt ledger's pass verdict holds, the final grade is committed and
// persisted; otherwise the enrollment stays in progress and the verdict is
// reported back.
func (s *EnrollmentService) Complete(ctx context.Context, id string) (*CompletionResult, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	section, err := s.findSection(ctx, row.SectionID)
	if err != nil {
		return nil, err
	}

	ledger, err := s.rebuildLedger(ctx, row)
	if err != nil {
		return nil, err
	}

	domain := grading.RestoreEnrollment(row.StudentID, row.SectionID, row.Status, ledger)
	passed, err := domain.Complete(section.PassingGrade)
	if err != nil {
		return nil, transitionError(err)
	}

	result := &CompletionResult{
		EnrollmentID: id,
		Status:       domain.Status(),
		Passed:       passed,
		FinalGrade:   ledger.CalculateFinal(),
	}
	if !passed {
		s.logger.Info("completion attempt failed verdict",
			zap.String("enrollment_id", id),
			zap.Float64("final_grade", result.FinalGrade))
		return result, nil
	}

	final, _ := ledger.Final()
	scored := final.Scored()
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, grading.StatusCompleted, &scored, &now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist completion")
	}

	s.invalidateReportCard(ctx, id)
	result.FinalGrade = scored
	s.logger.Info("enrollment completed",
		zap.String("enrollment_id", id),
		zap.Float64("final_grade", scored))
	return result, nil
}

// Delete removes an enrollment that never got underway.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	row, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if row.Status == grading.StatusCompleted {
		return appErrors.Clone(appErrors.ErrFinalized, "completed enrollments are part of the academic record")
	}
	if row.Status != grading.StatusPlanned && row.Status != grading.StatusWithdrawn {
		return appErrors.Clone(appErrors.ErrConflict, "only planned or withdrawn enrollments can be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete enrollment")
	}

	if row.Status == grading.StatusPlanned {
		s.releaseStudentBooking(ctx, row)
	}
	s.invalidateReportCard(ctx, id)
	return nil
}

func (s *EnrollmentService) findSection(ctx context.Context, id string) (*models.CourseSection, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find section")
	}
	return section, nil
}

func (s *EnrollmentService) rebuildLedger(ctx context.Context, row *models.Enrollment) (*grading.Ledger, error) {
	entries, err := s.grades.ListByEnrollment(ctx, row.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load grades")
	}
	assessments, err := s.assessments.ListBySection(ctx, row.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load assessments")
	}
	ledger, err := assembleLedger(entries, assessments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rebuild ledger")
	}
	return ledger, nil
}

func (s *EnrollmentService) releaseStudentBooking(ctx context.Context, row *models.Enrollment) {
	section, err := s.sections.FindByID(ctx, row.SectionID)
	if err != nil {
		s.logger.Warn("loading section for release failed",
			zap.String("enrollment_id", row.ID), zap.Error(err))
		return
	}
	w, err := s.board.SectionWindow(section)
	if err != nil {
		return
	}
	reg, err := s.board.Registry(ctx, timetable.OwnerStudent, row.StudentID)
	if err != nil {
		s.logger.Warn("loading student calendar for release failed",
			zap.String("student_id", row.StudentID), zap.Error(err))
		return
	}
	reg.Remove(w)
}

func (s *EnrollmentService) invalidateReportCard(ctx context.Context, enrollmentID string) {
	if err := s.cache.Delete(ctx, repository.ReportCardCacheKey(enrollmentID)); err != nil {
		s.logger.Warn("report card cache invalidation failed",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

func transitionError(err error) error {
	var te *grading.TransitionError
	if errors.As(err, &te) {
		return appErrors.Clone(appErrors.ErrConflict, te.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment transition")
}
