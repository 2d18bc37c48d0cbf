package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/timetable"
)

// BoardSectionRepo lists the persisted sections that belong to one owner's
// calendar.
type BoardSectionRepo interface {
	ListByRoom(ctx context.Context, roomID string) ([]models.CourseSection, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseSection, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CourseSection, error)
}

// BoardAssessmentRepo lists the persisted assessments of a section so their
// exam windows can be rebuilt.
type BoardAssessmentRepo interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error)
}

// ScheduleBoard is the in-process view of every owner's calendar. Registries
// are hydrated lazily from the database on first touch; after that the board
// is authoritative for conflict checks. Window values are cached per section
// and assessment so a booking placed into several registries shares one
// identity and can be released everywhere.
type ScheduleBoard struct {
	sections    BoardSectionRepo
	assessments BoardAssessmentRepo
	directory   *timetable.Directory
	logger      *zap.Logger

	mu       sync.Mutex
	hydrated map[string]bool
	windows  map[string]*timetable.Window
}

// NewScheduleBoard constructs an empty board.
func NewScheduleBoard(sections BoardSectionRepo, assessments BoardAssessmentRepo, logger *zap.Logger) *ScheduleBoard {
	return &ScheduleBoard{
		sections:    sections,
		assessments: assessments,
		directory:   timetable.NewDirectory(),
		logger:      logger,
		hydrated:    make(map[string]bool),
		windows:     make(map[string]*timetable.Window),
	}
}

func sectionWindowKey(id string) string    { return "section:" + id }
func assessmentWindowKey(id string) string { return "assessment:" + id }

// Registry returns the owner's registry, loading their persisted bookings on
// first touch.
func (b *ScheduleBoard) Registry(ctx context.Context, kind timetable.OwnerKind, ownerID string) (*timetable.Registry, error) {
	reg := b.directory.For(kind, ownerID)

	b.mu.Lock()
	defer b.mu.Unlock()
	key := string(kind) + ":" + ownerID
	if b.hydrated[key] {
		return reg, nil
	}

	var (
		sections []models.CourseSection
		err      error
	)
	switch kind {
	case timetable.OwnerRoom:
		sections, err = b.sections.ListByRoom(ctx, ownerID)
	case timetable.OwnerTeacher:
		sections, err = b.sections.ListByTeacher(ctx, ownerID)
	case timetable.OwnerStudent:
		sections, err = b.sections.ListByStudent(ctx, ownerID)
	default:
		return nil, fmt.Errorf("unknown owner kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("hydrate %s %s: %w", kind, ownerID, err)
	}

	for i := range sections {
		section := &sections[i]
		w, err := b.sectionWindowLocked(section)
		if err != nil {
			b.logger.Warn("skipping section with invalid schedule",
				zap.String("section_id", section.ID), zap.Error(err))
			continue
		}
		if err := reg.Add(w); err != nil {
			b.logger.Warn("persisted schedule already conflicts",
				zap.String("section_id", section.ID), zap.Error(err))
		}
		if kind == timetable.OwnerStudent {
			continue
		}
		b.hydrateAssessmentsLocked(ctx, reg, section)
	}

	b.hydrated[key] = true
	return reg, nil
}

func (b *ScheduleBoard) hydrateAssessmentsLocked(ctx context.Context, reg *timetable.Registry, section *models.CourseSection) {
	assessments, err := b.assessments.ListBySection(ctx, section.ID)
	if err != nil {
		b.logger.Warn("hydrating assessments failed",
			zap.String("section_id", section.ID), zap.Error(err))
		return
	}
	for i := range assessments {
		a := &assessments[i]
		if a.ExamDate == nil {
			continue
		}
		w, err := b.assessmentWindowLocked(a, section.DurationMinutes)
		if err != nil {
			b.logger.Warn("skipping assessment with invalid exam window",
				zap.String("assessment_id", a.ID), zap.Error(err))
			continue
		}
		if err := reg.Add(w); err != nil {
			b.logger.Warn("persisted exam window already conflicts",
				zap.String("assessment_id", a.ID), zap.Error(err))
		}
	}
}

// SectionWindow returns the section's schedule window, building and caching
// it on first use so every registry shares one window identity.
func (b *ScheduleBoard) SectionWindow(section *models.CourseSection) (*timetable.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sectionWindowLocked(section)
}

func (b *ScheduleBoard) sectionWindowLocked(section *models.CourseSection) (*timetable.Window, error) {
	key := sectionWindowKey(section.ID)
	if w, ok := b.windows[key]; ok {
		return w, nil
	}
	w, err := buildSectionWindow(section)
	if err != nil {
		return nil, err
	}
	b.windows[key] = w
	return w, nil
}

// AssessmentWindow returns the assessment's single-day exam window, building
// and caching it on first use. The assessment must carry an exam date.
func (b *ScheduleBoard) AssessmentWindow(a *models.Assessment, fallbackDuration int) (*timetable.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.assessmentWindowLocked(a, fallbackDuration)
}

func (b *ScheduleBoard) assessmentWindowLocked(a *models.Assessment, fallbackDuration int) (*timetable.Window, error) {
	key := assessmentWindowKey(a.ID)
	if w, ok := b.windows[key]; ok {
		return w, nil
	}
	w, err := buildAssessmentWindow(a, fallbackDuration)
	if err != nil {
		return nil, err
	}
	b.windows[key] = w
	return w, nil
}

// ReplaceSectionWindow swaps the cached window after a reschedule.
func (b *ScheduleBoard) ReplaceSectionWindow(sectionID string, w *timetable.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows[sectionWindowKey(sectionID)] = w
}

// ForgetSection drops the cached window for a deleted section.
func (b *ScheduleBoard) ForgetSection(sectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, sectionWindowKey(sectionID))
}

// ForgetAssessment drops the cached window for a deleted assessment.
func (b *ScheduleBoard) ForgetAssessment(assessmentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.windows, assessmentWindowKey(assessmentID))
}

// buildSectionWindow converts a persisted section into its schedule window.
func buildSectionWindow(section *models.CourseSection) (*timetable.Window, error) {
	pattern := timetable.NewPattern()
	for _, m := range section.Meetings {
		day, err := timetable.ParseWeekday(m.DayOfWeek)
		if err != nil {
			return nil, err
		}
		at, err := timetable.ParseTimeOfDay(m.StartTime)
		if err != nil {
			return nil, err
		}
		pattern.Set(day, at)
	}
	duration := time.Duration(section.DurationMinutes) * time.Minute
	w, err := timetable.NewWindow(pattern, duration, section.StartDate, section.EndDate)
	if err != nil {
		return nil, err
	}
	w.SetTag("section " + section.ID)
	return w, nil
}

// buildAssessmentWindow converts an assessment's exam slot into a single-day
// window. The section's meeting duration applies when the assessment does not
// carry its own.
func buildAssessmentWindow(a *models.Assessment, fallbackDuration int) (*timetable.Window, error) {
	if a.ExamDate == nil || a.ExamStartTime == nil {
		return nil, fmt.Errorf("assessment %s has no exam slot", a.ID)
	}
	at, err := timetable.ParseTimeOfDay(*a.ExamStartTime)
	if err != nil {
		return nil, err
	}
	date := timetable.DateOf(*a.ExamDate)
	pattern := timetable.NewPattern()
	pattern.Set(date.Weekday(), at)

	minutes := fallbackDuration
	if a.DurationMinutes != nil {
		minutes = *a.DurationMinutes
	}
	w, err := timetable.NewWindow(pattern, time.Duration(minutes)*time.Minute, date, date)
	if err != nil {
		return nil, err
	}
	w.SetTag("assessment " + a.ID)
	return w, nil
}
