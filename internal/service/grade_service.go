package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/grading"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/repository"
	"github.com/campuskit/campus-core-api/internal/timetable"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

// AssessmentRepo is the persistence surface for section assessments.
type AssessmentRepo interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error)
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Delete(ctx context.Context, id string) error
}

// GradeRepo is the persistence surface for recorded assessment grades.
type GradeRepo interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentGrade, error)
	Create(ctx context.Context, grade *models.AssessmentGrade) error
	Delete(ctx context.Context, id string) error
}

// EnrollmentFinder loads a single enrollment row.
type EnrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// GradingConfig tunes the grading rules.
type GradingConfig struct {
	DefaultPassingGrade float64
	ReportCacheTTL      time.Duration
}

// DefineAssessmentRequest is the payload for adding an assessment to a
// section. The exam slot fields are optional; when present the assessment
// claims a single-day window on the room and teacher calendars.
type DefineAssessmentRequest struct {
	Title           string  `json:"title" validate:"required"`
	Type            string  `json:"type" validate:"required"`
	Weightage       float64 `json:"weightage" validate:"gte=0,lte=100"`
	TotalGrade      float64 `json:"total_grade" validate:"required,gt=0"`
	PassingGrade    float64 `json:"passing_grade" validate:"gte=0"`
	ExamDate        string  `json:"exam_date,omitempty"`
	ExamStartTime   string  `json:"exam_start_time,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty" validate:"gte=0"`
}

// SubmitGradeRequest is the payload for recording a student's score.
type SubmitGradeRequest struct {
	EnrollmentID string  `json:"enrollment_id" validate:"required"`
	AssessmentID string  `json:"assessment_id" validate:"required"`
	ScoredGrade  float64 `json:"scored_grade" validate:"gte=0"`
}

// BulkSubmitGradesRequest is the payload for recording several scores at
// once, typically a teacher entering one assessment for a whole section.
type BulkSubmitGradesRequest struct {
	Grades []SubmitGradeRequest `json:"grades" validate:"required,min=1,dive"`
}

// GradeService defines assessments, records grades against the weightage
// budget and assembles report cards.
type GradeService struct {
	assessments AssessmentRepo
	grades      GradeRepo
	enrollments EnrollmentFinder
	sections    SectionFinder
	cache       CacheRepo
	board       *ScheduleBoard
	metrics     *MetricsService
	validate    *validator.Validate
	logger      *zap.Logger
	cfg         GradingConfig

	// The budget and duplicate checks read the repository before writing to
	// it, so concurrent requests against the same section or enrollment are
	// serialized here.
	sectionLocks    *keyedMutex
	enrollmentLocks *keyedMutex
}

// NewGradeService constructs the grade service.
func NewGradeService(assessments AssessmentRepo, grades GradeRepo, enrollments EnrollmentFinder, sections SectionFinder, cache CacheRepo, board *ScheduleBoard, metrics *MetricsService, logger *zap.Logger, cfg GradingConfig) *GradeService {
	if cfg.DefaultPassingGrade <= 0 {
		cfg.DefaultPassingGrade = 60.0
	}
	if cfg.ReportCacheTTL <= 0 {
		cfg.ReportCacheTTL = 5 * time.Minute
	}
	return &GradeService{
		assessments:     assessments,
		grades:          grades,
		enrollments:     enrollments,
		sections:        sections,
		cache:           cache,
		board:           board,
		metrics:         metrics,
		validate:        validator.New(),
		logger:          logger,
		cfg:             cfg,
		sectionLocks:    newKeyedMutex(),
		enrollmentLocks: newKeyedMutex(),
	}
}

// ListAssessments returns a section's assessments.
func (s *GradeService) ListAssessments(ctx context.Context, sectionID string) ([]models.Assessment, error) {
	assessments, err := s.assessments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list assessments")
	}
	return assessments, nil
}

// DefineAssessment adds an assessment to a section. Non-bonus weightage is
// checked against the remaining budget before anything is stored; an exam
// slot is conflict-checked against the room and teacher calendars.
func (s *GradeService) DefineAssessment(ctx context.Context, sectionID string, req DefineAssessmentRequest) (*models.Assessment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}

	section, err := s.findSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	kind, err := grading.ParseAssessmentType(req.Type)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	// Hold the section lock across the budget check and the insert so a
	// concurrent definition cannot slip past the same snapshot.
	mu := s.sectionLocks.get(sectionID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.assessments.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list assessments")
	}
	if !kind.IsBonus() {
		current := nonBonusWeightage(existing)
		if current+req.Weightage > grading.WeightageBudget {
			s.metrics.RecordWeightageRejection()
			budgetErr := &grading.WeightageExceededError{
				Current:   current,
				Attempted: req.Weightage,
				Excess:    current + req.Weightage - grading.WeightageBudget,
			}
			return nil, appErrors.Clone(appErrors.ErrWeightageExceeded, budgetErr.Error())
		}
	}

	passing := req.PassingGrade
	if passing <= 0 {
		passing = s.cfg.DefaultPassingGrade
	}

	assessment := &models.Assessment{
		ID:           uuid.NewString(),
		SectionID:    sectionID,
		Title:        req.Title,
		Type:         string(kind),
		Weightage:    req.Weightage,
		TotalGrade:   req.TotalGrade,
		PassingGrade: passing,
	}

	var (
		examWindow *timetable.Window
		roomReg    *timetable.Registry
		teacherReg *timetable.Registry
	)
	if req.ExamDate != "" {
		examDate, err := time.Parse(dateLayout, req.ExamDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid exam date %q", req.ExamDate))
		}
		if req.ExamStartTime == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "exam date requires a start time")
		}
		assessment.ExamDate = &examDate
		assessment.ExamStartTime = &req.ExamStartTime
		if req.DurationMinutes > 0 {
			assessment.DurationMinutes = &req.DurationMinutes
		}

		examWindow, err = s.board.AssessmentWindow(assessment, section.DurationMinutes)
		if err != nil {
			s.board.ForgetAssessment(assessment.ID)
			return nil, scheduleBuildError(err)
		}
		roomReg, err = s.board.Registry(ctx, timetable.OwnerRoom, section.RoomID)
		if err != nil {
			s.board.ForgetAssessment(assessment.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load room calendar")
		}
		teacherReg, err = s.board.Registry(ctx, timetable.OwnerTeacher, section.TeacherID)
		if err != nil {
			s.board.ForgetAssessment(assessment.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teacher calendar")
		}
		if err := timetable.BookAll(examWindow, roomReg, teacherReg); err != nil {
			s.board.ForgetAssessment(assessment.ID)
			var ce *timetable.ConflictError
			if errors.As(err, &ce) {
				s.metrics.RecordBookingConflict(string(ce.OwnerKind))
				return nil, appErrors.Clone(appErrors.ErrScheduleConflict, ce.Error())
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "book exam window")
		}
	}

	if err := s.assessments.Create(ctx, assessment); err != nil {
		if examWindow != nil {
			timetable.ReleaseAll(examWindow, roomReg, teacherReg)
			s.board.ForgetAssessment(assessment.ID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist assessment")
	}

	s.logger.Info("assessment defined",
		zap.String("assessment_id", assessment.ID),
		zap.String("section_id", sectionID),
		zap.String("type", assessment.Type),
		zap.Float64("weightage", assessment.Weightage))
	return assessment, nil
}

// DeleteAssessment removes an assessment, its recorded grades and its exam
// window booking.
func (s *GradeService) DeleteAssessment(ctx context.Context, id string) error {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find assessment")
	}

	if assessment.ExamDate != nil {
		s.releaseExamWindow(ctx, assessment)
	}

	if err := s.assessments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete assessment")
	}

	s.board.ForgetAssessment(id)

	// Every report card in the section is stale once a component is gone.
	if err := s.cache.DeleteByPattern(ctx, repository.ReportCardCachePattern()); err != nil {
		s.logger.Warn("report card cache invalidation failed", zap.Error(err))
	}

	s.logger.Info("assessment deleted", zap.String("assessment_id", id))
	return nil
}

// SubmitGrade records a student's score on one assessment. The enrollment's
// ledger is rebuilt from persisted grades so the weightage budget check sees
// the complete picture.
func (s *GradeService) SubmitGrade(ctx context.Context, req SubmitGradeRequest) (*models.AssessmentGrade, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	row, err := s.findEnrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if row.Status != grading.StatusInProgress {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "grades can only be recorded for in-progress enrollments")
	}

	assessment, err := s.assessments.FindByID(ctx, req.AssessmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find assessment")
	}
	if assessment.SectionID != row.SectionID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assessment does not belong to the enrollment's section")
	}

	// Duplicate and budget checks work off the grades read below; the
	// enrollment lock keeps the read-check-insert sequence atomic.
	mu := s.enrollmentLocks.get(req.EnrollmentID)
	mu.Lock()
	defer mu.Unlock()

	entries, err := s.grades.ListByEnrollment(ctx, req.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load grades")
	}
	for _, e := range entries {
		if e.AssessmentID == req.AssessmentID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "grade already recorded for assessment")
		}
	}

	sectionAssessments, err := s.assessments.ListBySection(ctx, row.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load assessments")
	}
	ledger, err := assembleLedger(entries, sectionAssessments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rebuild ledger")
	}

	grade, err := domainGrade(assessment, req.ScoredGrade)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := ledger.Add(grade); err != nil {
		var we *grading.WeightageExceededError
		if errors.As(err, &we) {
			s.metrics.RecordWeightageRejection()
			return nil, appErrors.Clone(appErrors.ErrWeightageExceeded, we.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record grade")
	}

	record := &models.AssessmentGrade{
		EnrollmentID: req.EnrollmentID,
		AssessmentID: req.AssessmentID,
		ScoredGrade:  req.ScoredGrade,
	}
	if err := s.grades.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist grade")
	}

	s.invalidateReportCard(ctx, req.EnrollmentID)
	s.logger.Info("grade recorded",
		zap.String("enrollment_id", req.EnrollmentID),
		zap.String("assessment_id", req.AssessmentID),
		zap.Float64("scored", req.ScoredGrade))
	return record, nil
}

// BulkSubmitGrades records several grades in one call, stopping at the
// first entry that fails. Entries recorded before the failure stay recorded.
func (s *GradeService) BulkSubmitGrades(ctx context.Context, req BulkSubmitGradesRequest) ([]*models.AssessmentGrade, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grade payload")
	}

	records := make([]*models.AssessmentGrade, 0, len(req.Grades))
	for i, item := range req.Grades {
		record, err := s.SubmitGrade(ctx, item)
		if err != nil {
			appErr := appErrors.FromError(err)
			return records, appErrors.Clone(appErr, fmt.Sprintf("grade %d: %s", i+1, appErr.Message))
		}
		records = append(records, record)
	}
	return records, nil
}

// ReportCard assembles an enrollment's grades, aggregate and pass verdict,
// cached per enrollment.
func (s *GradeService) ReportCard(ctx context.Context, enrollmentID string) (*models.ReportCard, error) {
	key := repository.ReportCardCacheKey(enrollmentID)
	var cached models.ReportCard
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	}
	if errors.Is(err, appErrors.ErrCacheMiss) {
		s.metrics.RecordCacheOperation(false)
	} else {
		s.logger.Warn("report card cache read failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}

	row, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	section, err := s.findSection(ctx, row.SectionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.grades.ListByEnrollment(ctx, enrollmentID)
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

	byID := make(map[string]models.Assessment, len(assessments))
	for _, a := range assessments {
		byID[a.ID] = a
	}

	card := &models.ReportCard{
		EnrollmentID:   enrollmentID,
		StudentID:      row.StudentID,
		SectionID:      row.SectionID,
		Grades:         make([]models.GradeSummary, 0, len(entries)),
		WeightageTotal: ledger.WeightageTotal(),
		PassingGrade:   section.PassingGrade,
		Passed:         ledger.Passed(section.PassingGrade),
	}
	for _, g := range ledger.Entries() {
		a := byID[g.Assessment.ID]
		card.Grades = append(card.Grades, models.GradeSummary{
			AssessmentID: a.ID,
			Title:        a.Title,
			Type:         a.Type,
			Weightage:    a.Weightage,
			ScoredGrade:  g.Scored,
			TotalGrade:   g.Total,
			Contribution: g.Contribution(),
		})
	}
	if row.FinalGrade != nil {
		card.FinalGrade = *row.FinalGrade
	} else {
		card.FinalGrade = ledger.CalculateFinal()
	}

	if err := s.cache.Set(ctx, key, card, s.cfg.ReportCacheTTL); err != nil {
		s.logger.Warn("report card cache write failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
	return card, nil
}

func (s *GradeService) findSection(ctx context.Context, id string) (*models.CourseSection, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find section")
	}
	return section, nil
}

func (s *GradeService) findEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	row, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find enrollment")
	}
	return row, nil
}

func (s *GradeService) releaseExamWindow(ctx context.Context, assessment *models.Assessment) {
	section, err := s.sections.FindByID(ctx, assessment.SectionID)
	if err != nil {
		s.logger.Warn("loading section for exam release failed",
			zap.String("assessment_id", assessment.ID), zap.Error(err))
		return
	}
	w, err := s.board.AssessmentWindow(assessment, section.DurationMinutes)
	if err != nil {
		return
	}
	roomReg, err := s.board.Registry(ctx, timetable.OwnerRoom, section.RoomID)
	if err == nil {
		roomReg.Remove(w)
	}
	teacherReg, err := s.board.Registry(ctx, timetable.OwnerTeacher, section.TeacherID)
	if err == nil {
		teacherReg.Remove(w)
	}
}

func (s *GradeService) invalidateReportCard(ctx context.Context, enrollmentID string) {
	if err := s.cache.Delete(ctx, repository.ReportCardCacheKey(enrollmentID)); err != nil {
		s.logger.Warn("report card cache invalidation failed",
			zap.String("enrollment_id", enrollmentID), zap.Error(err))
	}
}

// assembleLedger rebuilds a grade ledger from persisted rows. Every row must
// reference an assessment of the section.
func assembleLedger(entries []models.AssessmentGrade, assessments []models.Assessment) (*grading.Ledger, error) {
	byID := make(map[string]models.Assessment, len(assessments))
	for _, a := range assessments {
		byID[a.ID] = a
	}
	ledger := grading.NewLedger()
	for _, row := range entries {
		a, ok := byID[row.AssessmentID]
		if !ok {
			return nil, fmt.Errorf("grade %s references unknown assessment %s", row.ID, row.AssessmentID)
		}
		g, err := domainGrade(&a, row.ScoredGrade)
		if err != nil {
			return nil, fmt.Errorf("grade %s invalid: %w", row.ID, err)
		}
		if err := ledger.Add(g); err != nil {
			return nil, fmt.Errorf("grade %s overruns budget: %w", row.ID, err)
		}
	}
	return ledger, nil
}

// domainGrade converts a persisted assessment plus score into a validated
// domain grade.
func domainGrade(a *models.Assessment, scored float64) (grading.AssessmentGrade, error) {
	kind, err := grading.ParseAssessmentType(a.Type)
	if err != nil {
		return grading.AssessmentGrade{}, err
	}
	return grading.NewAssessmentGrade(grading.Assessment{
		ID:        a.ID,
		Type:      kind,
		Weightage: a.Weightage,
	}, scored, a.TotalGrade, a.PassingGrade)
}

func nonBonusWeightage(assessments []models.Assessment) float64 {
	total := 0.0
	for _, a := range assessments {
		if !grading.AssessmentType(a.Type).IsBonus() {
			total += a.Weightage
		}
	}
	return total
}
