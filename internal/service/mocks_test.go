package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/campuskit/campus-core-api/internal/grading"
	"github.com/campuskit/campus-core-api/internal/models"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

func errNoRows() error { return sql.ErrNoRows }

type sectionRepoMock struct {
	listFn      func(context.Context, models.SectionFilter) ([]models.CourseSection, int, error)
	findFn      func(context.Context, string) (*models.CourseSection, error)
	createFn    func(context.Context, *models.CourseSection) error
	updateFn    func(context.Context, *models.CourseSection) error
	deleteFn    func(context.Context, string) error
	byRoomFn    func(context.Context, string) ([]models.CourseSection, error)
	byTeacherFn func(context.Context, string) ([]models.CourseSection, error)
	byStudentFn func(context.Context, string) ([]models.CourseSection, error)
}

func (m *sectionRepoMock) List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *sectionRepoMock) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *sectionRepoMock) Create(ctx context.Context, section *models.CourseSection) error {
	if m.createFn != nil {
		return m.createFn(ctx, section)
	}
	return nil
}

func (m *sectionRepoMock) UpdateSchedule(ctx context.Context, section *models.CourseSection) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, section)
	}
	return nil
}

func (m *sectionRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *sectionRepoMock) ListByRoom(ctx context.Context, roomID string) ([]models.CourseSection, error) {
	if m.byRoomFn != nil {
		return m.byRoomFn(ctx, roomID)
	}
	return nil, nil
}

func (m *sectionRepoMock) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseSection, error) {
	if m.byTeacherFn != nil {
		return m.byTeacherFn(ctx, teacherID)
	}
	return nil, nil
}

func (m *sectionRepoMock) ListByStudent(ctx context.Context, studentID string) ([]models.CourseSection, error) {
	if m.byStudentFn != nil {
		return m.byStudentFn(ctx, studentID)
	}
	return nil, nil
}

type enrollmentRepoMock struct {
	listFn         func(context.Context, models.EnrollmentFilter) ([]models.Enrollment, int, error)
	findFn         func(context.Context, string) (*models.Enrollment, error)
	existsFn       func(context.Context, string, string) (bool, error)
	activeFn       func(context.Context, string) ([]models.Enrollment, error)
	createFn       func(context.Context, *models.Enrollment) error
	updateStatusFn func(context.Context, string, grading.Status, *float64, *time.Time) error
	deleteFn       func(context.Context, string) error
}

func (m *enrollmentRepoMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, 0, nil
}

func (m *enrollmentRepoMock) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *enrollmentRepoMock) ExistsActive(ctx context.Context, studentID, sectionID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, studentID, sectionID)
	}
	return false, nil
}

func (m *enrollmentRepoMock) ListActiveBySection(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx, sectionID)
	}
	return nil, nil
}

func (m *enrollmentRepoMock) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createFn != nil {
		return m.createFn(ctx, enrollment)
	}
	return nil
}

func (m *enrollmentRepoMock) UpdateStatus(ctx context.Context, id string, status grading.Status, finalGrade *float64, completedAt *time.Time) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status, finalGrade, completedAt)
	}
	return nil
}

func (m *enrollmentRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type assessmentRepoMock struct {
	bySectionFn func(context.Context, string) ([]models.Assessment, error)
	findFn      func(context.Context, string) (*models.Assessment, error)
	createFn    func(context.Context, *models.Assessment) error
	deleteFn    func(context.Context, string) error
}

func (m *assessmentRepoMock) ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error) {
	if m.bySectionFn != nil {
		return m.bySectionFn(ctx, sectionID)
	}
	return nil, nil
}

func (m *assessmentRepoMock) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if m.findFn != nil {
		return m.findFn(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *assessmentRepoMock) Create(ctx context.Context, assessment *models.Assessment) error {
	if m.createFn != nil {
		return m.createFn(ctx, assessment)
	}
	return nil
}

func (m *assessmentRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type gradeRepoMock struct {
	byEnrollmentFn func(context.Context, string) ([]models.AssessmentGrade, error)
	createFn       func(context.Context, *models.AssessmentGrade) error
	deleteFn       func(context.Context, string) error
}

func (m *gradeRepoMock) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.AssessmentGrade, error) {
	if m.byEnrollmentFn != nil {
		return m.byEnrollmentFn(ctx, enrollmentID)
	}
	return nil, nil
}

func (m *gradeRepoMock) Create(ctx context.Context, grade *models.AssessmentGrade) error {
	if m.createFn != nil {
		return m.createFn(ctx, grade)
	}
	return nil
}

func (m *gradeRepoMock) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// cacheMock is a miss-only cache unless getFn is provided. Writes and
// deletes are recorded for assertions.
type cacheMock struct {
	getFn   func(context.Context, string, interface{}) error
	sets    []string
	deletes []string
}

func (m *cacheMock) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getFn != nil {
		return m.getFn(ctx, key, dest)
	}
	return appErrors.ErrCacheMiss
}

func (m *cacheMock) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets = append(m.sets, key)
	return nil
}

func (m *cacheMock) Delete(ctx context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	return nil
}

func (m *cacheMock) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	return nil
}
