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

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/repository"
	"github.com/campuskit/campus-core-api/internal/timetable"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// SectionRepo is the persistence surface the section service needs.
type SectionRepo interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseSection, error)
	Create(ctx context.Context, section *models.CourseSection) error
	UpdateSchedule(ctx context.Context, section *models.CourseSection) error
	Delete(ctx context.Context, id string) error
}

// SectionEnrollmentRepo guards deletion of sections that still have live
// enrollments.
type SectionEnrollmentRepo interface {
	ListActiveBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error)
}

// CacheRepo is the caching surface shared by the read-heavy services.
type CacheRepo interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// BookingConfig tunes the section booking rules.
type BookingConfig struct {
	OccurrenceCacheTTL time.Duration
	MaxRangeDays       int
}

// MeetingInput is one weekly meeting entry in a booking payload.
type MeetingInput struct {
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
}

// CreateSectionRequest is the payload for booking a new course section.
type CreateSectionRequest struct {
	CourseID        string         `json:"course_id" validate:"required"`
	SessionID       string         `json:"session_id" validate:"required"`
	RoomID          string         `json:"room_id" validate:"required"`
	TeacherID       string         `json:"teacher_id" validate:"required"`
	Capacity        int            `json:"capacity" validate:"gte=0"`
	PassingGrade    float64        `json:"passing_grade" validate:"gte=0,lte=100"`
	DurationMinutes int            `json:"duration_minutes" validate:"required,gt=0"`
	StartDate       string         `json:"start_date" validate:"required"`
	EndDate         string         `json:"end_date" validate:"required"`
	Meetings        []MeetingInput `json:"meetings" validate:"required,min=1,dive"`
}

// RescheduleSectionRequest is the payload for replacing a section's schedule.
type RescheduleSectionRequest struct {
	RoomID          string         `json:"room_id" validate:"required"`
	TeacherID       string         `json:"teacher_id" validate:"required"`
	DurationMinutes int            `json:"duration_minutes" validate:"required,gt=0"`
	StartDate       string         `json:"start_date" validate:"required"`
	EndDate         string         `json:"end_date" validate:"required"`
	Meetings        []MeetingInput `json:"meetings" validate:"required,min=1,dive"`
}

// SectionService books course sections onto room and teacher calendars and
// keeps the derived occurrence listings cached.
type SectionService struct {
	repo        SectionRepo
	enrollments SectionEnrollmentRepo
	cache       CacheRepo
	board       *ScheduleBoard
	metrics     *MetricsService
	validate    *validator.Validate
	logger      *zap.Logger
	cfg         BookingConfig
}

// NewSectionService constructs the section service.
func NewSectionService(repo SectionRepo, enrollments SectionEnrollmentRepo, cache CacheRepo, board *ScheduleBoard, metrics *MetricsService, logger *zap.Logger, cfg BookingConfig) *SectionService {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 366
	}
	if cfg.OccurrenceCacheTTL <= 0 {
		cfg.OccurrenceCacheTTL = 10 * time.Minute
	}
	return &SectionService{
		repo:        repo,
		enrollments: enrollments,
		cache:       cache,
		board:       board,
		metrics:     metrics,
		validate:    validator.New(),
		logger:      logger,
		cfg:         cfg,
	}
}

// List returns sections matching the filter with pagination metadata.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, *models.Pagination, error) {
	sections, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list sections")
	}
	return sections, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one section with its meeting entries.
func (s *SectionService) Get(ctx context.Context, id string) (*models.CourseSection, error) {
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "find section")
	}
	return section, nil
}

// Create books a new section. The schedule window is registered atomically
// with the room and the teacher: a conflict on either calendar leaves both
// untouched and nothing is persisted.
func (s *SectionService) Create(ctx context.Context, req CreateSectionRequest) (*models.CourseSection, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}

	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	section := &models.CourseSection{
		ID:              uuid.NewString(),
		CourseID:        req.CourseID,
		SessionID:       req.SessionID,
		RoomID:          req.RoomID,
		TeacherID:       req.TeacherID,
		Capacity:        req.Capacity,
		PassingGrade:    req.PassingGrade,
		DurationMinutes: req.DurationMinutes,
		StartDate:       start,
		EndDate:         end,
		Meetings:        meetingsFromInput(req.Meetings),
	}

	w, err := s.board.SectionWindow(section)
	if err != nil {
		s.board.ForgetSection(section.ID)
		return nil, scheduleBuildError(err)
	}

	roomReg, teacherReg, err := s.ownerRegistries(ctx, req.RoomID, req.TeacherID)
	if err != nil {
		s.board.ForgetSection(section.ID)
		return nil, err
	}

	if err := timetable.BookAll(w, roomReg, teacherReg); err != nil {
		s.board.ForgetSection(section.ID)
		return nil, s.conflictError(err)
	}

	if err := s.repo.Create(ctx, section); err != nil {
		timetable.ReleaseAll(w, roomReg, teacherReg)
		s.board.ForgetSection(section.ID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist section")
	}

	s.logger.Info("section booked",
		zap.String("section_id", section.ID),
		zap.String("room_id", section.RoomID),
		zap.String("teacher_id", section.TeacherID),
		zap.Int("meetings", len(section.Meetings)))
	return section, nil
}

// Reschedule replaces a section's schedule. The old booking is released and
// the new one registered; on conflict the old booking is restored.
func (s *SectionService) Reschedule(ctx context.Context, id string, req RescheduleSectionRequest) (*models.CourseSection, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start, end, err := s.parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.RoomID = req.RoomID
	updated.TeacherID = req.TeacherID
	updated.DurationMinutes = req.DurationMinutes
	updated.StartDate = start
	updated.EndDate = end
	updated.Meetings = meetingsFromInput(req.Meetings)

	oldW, err := s.board.SectionWindow(existing)
	if err != nil {
		return nil, scheduleBuildError(err)
	}
	newW, err := buildSectionWindow(&updated)
	if err != nil {
		return nil, scheduleBuildError(err)
	}

	oldRoomReg, oldTeacherReg, err := s.ownerRegistries(ctx, existing.RoomID, existing.TeacherID)
	if err != nil {
		return nil, err
	}
	newRoomReg, newTeacherReg, err := s.ownerRegistries(ctx, req.RoomID, req.TeacherID)
	if err != nil {
		return nil, err
	}

	timetable.ReleaseAll(oldW, oldRoomReg, oldTeacherReg)

	if err := timetable.BookAll(newW, newRoomReg, newTeacherReg); err != nil {
		s.restoreBooking(oldW, oldRoomReg, oldTeacherReg)
		return nil, s.conflictError(err)
	}

	if err := s.repo.UpdateSchedule(ctx, &updated); err != nil {
		timetable.ReleaseAll(newW, newRoomReg, newTeacherReg)
		s.restoreBooking(oldW, oldRoomReg, oldTeacherReg)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist reschedule")
	}

	s.board.ReplaceSectionWindow(id, newW)
	s.invalidateOccurrences(ctx, id)

	s.logger.Info("section rescheduled", zap.String("section_id", id))
	return &updated, nil
}

// Delete removes a section that has no live enrollments and releases its
// booking.
func (s *SectionService) Delete(ctx context.Context, id string) error {
	section, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	active, err := s.enrollments.ListActiveBySection(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check enrollments")
	}
	if len(active) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "section has live enrollments")
	}

	w, err := s.board.SectionWindow(section)
	if err != nil {
		return scheduleBuildError(err)
	}
	roomReg, teacherReg, err := s.ownerRegistries(ctx, section.RoomID, section.TeacherID)
	if err != nil {
		return err
	}

	timetable.ReleaseAll(w, roomReg, teacherReg)

	if err := s.repo.Delete(ctx, id); err != nil {
		s.restoreBooking(w, roomReg, teacherReg)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "delete section")
	}

	s.board.ForgetSection(id)
	s.invalidateOccurrences(ctx, id)
	s.logger.Info("section deleted", zap.String("section_id", id))
	return nil
}

// Occurrences returns the concrete meeting dates of a section, cached.
func (s *SectionService) Occurrences(ctx context.Context, id string) (*models.SectionOccurrences, error) {
	key := repository.OccurrencesCacheKey(id)
	var cached models.SectionOccurrences
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		s.metrics.RecordCacheOperation(true)
		return &cached, nil
	}
	if errors.Is(err, appErrors.ErrCacheMiss) {
		s.metrics.RecordCacheOperation(false)
	} else {
		s.logger.Warn("occurrence cache read failed", zap.String("section_id", id), zap.Error(err))
	}

	section, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	w, err := s.board.SectionWindow(section)
	if err != nil {
		return nil, scheduleBuildError(err)
	}

	out := &models.SectionOccurrences{SectionID: id, Dates: w.Occurrences()}
	if err := s.cache.Set(ctx, key, out, s.cfg.OccurrenceCacheTTL); err != nil {
		s.logger.Warn("occurrence cache write failed", zap.String("section_id", id), zap.Error(err))
	}
	return out, nil
}

func (s *SectionService) ownerRegistries(ctx context.Context, roomID, teacherID string) (*timetable.Registry, *timetable.Registry, error) {
	roomReg, err := s.board.Registry(ctx, timetable.OwnerRoom, roomID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load room calendar")
	}
	teacherReg, err := s.board.Registry(ctx, timetable.OwnerTeacher, teacherID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teacher calendar")
	}
	return roomReg, teacherReg, nil
}

func (s *SectionService) parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start date %q", startStr))
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end date %q", endStr))
	}
	if end.Sub(start) > time.Duration(s.cfg.MaxRangeDays)*24*time.Hour {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrInvalidRange,
			fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}
	return start, end, nil
}

func (s *SectionService) conflictError(err error) error {
	var ce *timetable.ConflictError
	if errors.As(err, &ce) {
		s.metrics.RecordBookingConflict(string(ce.OwnerKind))
		return appErrors.Clone(appErrors.ErrScheduleConflict, ce.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "book schedule")
}

func (s *SectionService) restoreBooking(w *timetable.Window, registries ...*timetable.Registry) {
	if err := timetable.BookAll(w, registries...); err != nil {
		s.logger.Warn("restoring prior booking failed", zap.String("window", w.Tag()), zap.Error(err))
	}
}

func (s *SectionService) invalidateOccurrences(ctx context.Context, sectionID string) {
	if err := s.cache.Delete(ctx, repository.OccurrencesCacheKey(sectionID)); err != nil {
		s.logger.Warn("occurrence cache invalidation failed", zap.String("section_id", sectionID), zap.Error(err))
	}
}

func meetingsFromInput(inputs []MeetingInput) []models.MeetingTime {
	meetings := make([]models.MeetingTime, 0, len(inputs))
	for _, in := range inputs {
		meetings = append(meetings, models.MeetingTime{DayOfWeek: in.DayOfWeek, StartTime: in.StartTime})
	}
	return meetings
}

func scheduleBuildError(err error) error {
	var re *timetable.RangeError
	if errors.As(err, &re) {
		return appErrors.Clone(appErrors.ErrInvalidRange, re.Error())
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule")
}

func newPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
