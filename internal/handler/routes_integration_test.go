package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/campus-core-api/internal/grading"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

func TestRoutesIntegration(t *testing.T) {
	router := buildTestRouter(t)

	adminToken := loginAs(t, router, "admin@campus.edu")
	studentToken := loginAs(t, router, "student@campus.edu")

	t.Run("health open", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/health", "", ""))
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("sections require auth", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/api/v1/sections", "", ""))
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("sections list with token", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/api/v1/sections", "", studentToken))
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("section create forbidden for students", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodPost, "/api/v1/sections", sectionPayload("room-1", "09:00"), studentToken))
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("section create and conflict", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodPost, "/api/v1/sections", sectionPayload("room-1", "09:00"), adminToken))
		require.Equal(t, http.StatusCreated, resp.Code)

		resp = performRequest(router, newRequest(t, http.MethodPost, "/api/v1/sections", sectionPayload("room-1", "09:30"), adminToken))
		require.Equal(t, http.StatusConflict, resp.Code)
		require.Contains(t, resp.Body.String(), appErrors.ErrScheduleConflict.Code)

		resp = performRequest(router, newRequest(t, http.MethodPost, "/api/v1/sections", sectionPayload("room-2", "09:30"), adminToken))
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("user admin forbidden for students", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/api/v1/users", "", studentToken))
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("report download rejects forged token without auth", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/api/v1/reports/downloads/forged-token", "", ""))
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("metrics open", func(t *testing.T) {
		resp := performRequest(router, newRequest(t, http.MethodGet, "/metrics", "", ""))
		require.Equal(t, http.StatusOK, resp.Code)
	})
}

func loginAs(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	payload := fmt.Sprintf(`{"email":%q,"password":"integration-pass"}`, email)
	resp := performRequest(router, newRequest(t, http.MethodPost, "/api/v1/auth/login", payload, ""))
	require.Equal(t, http.StatusOK, resp.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.AccessToken)
	return envelope.Data.AccessToken
}

func sectionPayload(roomID, startTime string) string {
	return fmt.Sprintf(`{
		"course_id": "course-1",
		"session_id": "sess-1",
		"room_id": %q,
		"teacher_id": "teacher-%s",
		"duration_minutes": 60,
		"start_date": "2024-01-01",
		"end_date": "2024-03-31",
		"meetings": [{"day_of_week": "MONDAY", "start_time": %q}]
	}`, roomID, startTime, startTime)
}

func newRequest(t *testing.T, method, path, body, token string) *http.Request {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	users := newUserStoreStub(t)
	sections := &sectionStoreStub{byID: make(map[string]*models.CourseSection)}
	assessments := &assessmentStoreStub{}
	enrollments := &enrollmentStoreStub{}
	grades := &gradeStoreStub{}
	cache := &cacheStub{}

	board := service.NewScheduleBoard(sections, assessments, logger)
	metrics := service.NewMetricsService()

	authSvc := service.NewAuthService(users, service.AuthConfig{Secret: "integration-secret"}, logger)
	sectionSvc := service.NewSectionService(sections, enrollments, cache, board, metrics, logger, service.BookingConfig{})
	enrollmentSvc := service.NewEnrollmentService(enrollments, sections, assessments, grades, cache, board, metrics, logger)
	gradeSvc := service.NewGradeService(assessments, grades, enrollments, sections, cache, board, metrics, logger, service.GradingConfig{})
	exportStore, err := storage.NewExportStore(t.TempDir())
	require.NoError(t, err)
	downloadSigner := storage.NewDownloadSigner("integration-secret", time.Hour)
	reportSvc := service.NewReportService(gradeSvc, sectionSvc, exportStore, downloadSigner, logger, service.ReportsConfig{Enabled: true, DownloadTTL: time.Hour})
	userSvc := service.NewUserService(users, logger)

	router := gin.New()
	RegisterRoutes(router, "/api/v1", authSvc, Handlers{
		Auth:        NewAuthHandler(authSvc),
		Users:       NewUserHandler(userSvc),
		Sections:    NewSectionHandler(sectionSvc),
		Enrollments: NewEnrollmentHandler(enrollmentSvc),
		Grades:      NewGradeHandler(gradeSvc),
		Reports:     NewReportHandler(reportSvc),
		Metrics:     NewMetricsHandler(metrics),
	})
	return router
}

// userStoreStub serves both the auth service and the user admin service.
type userStoreStub struct {
	byEmail map[string]*models.User
}

func newUserStoreStub(t *testing.T) *userStoreStub {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("integration-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	stub := &userStoreStub{byEmail: make(map[string]*models.User)}
	stub.byEmail["admin@campus.edu"] = &models.User{
		ID: "user-admin", Email: "admin@campus.edu", PasswordHash: string(hash),
		FullName: "Admin", Role: models.RoleAdmin, Active: true,
	}
	stub.byEmail["student@campus.edu"] = &models.User{
		ID: "user-student", Email: "student@campus.edu", PasswordHash: string(hash),
		FullName: "Student", Role: models.RoleStudent, Active: true,
	}
	return stub
}

func (s *userStoreStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userStoreStub) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range s.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userStoreStub) UpdateLastLogin(context.Context, string, time.Time) error { return nil }

func (s *userStoreStub) UpdatePassword(context.Context, string, string, time.Time) error { return nil }

func (s *userStoreStub) List(context.Context, models.UserFilter) ([]models.User, int, error) {
	return nil, 0, nil
}

func (s *userStoreStub) Create(_ context.Context, user *models.User) error {
	s.byEmail[user.Email] = user
	return nil
}

func (s *userStoreStub) Update(context.Context, *models.User) error { return nil }

func (s *userStoreStub) Delete(context.Context, string) error { return nil }

type sectionStoreStub struct {
	byID map[string]*models.CourseSection
}

func (s *sectionStoreStub) List(context.Context, models.SectionFilter) ([]models.CourseSection, int, error) {
	return nil, 0, nil
}

func (s *sectionStoreStub) FindByID(_ context.Context, id string) (*models.CourseSection, error) {
	if section, ok := s.byID[id]; ok {
		return section, nil
	}
	return nil, sql.ErrNoRows
}

func (s *sectionStoreStub) Create(_ context.Context, section *models.CourseSection) error {
	s.byID[section.ID] = section
	return nil
}

func (s *sectionStoreStub) UpdateSchedule(_ context.Context, section *models.CourseSection) error {
	s.byID[section.ID] = section
	return nil
}

func (s *sectionStoreStub) Delete(_ context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

func (s *sectionStoreStub) ListByRoom(_ context.Context, roomID string) ([]models.CourseSection, error) {
	var out []models.CourseSection
	for _, section := range s.byID {
		if section.RoomID == roomID {
			out = append(out, *section)
		}
	}
	return out, nil
}

func (s *sectionStoreStub) ListByTeacher(_ context.Context, teacherID string) ([]models.CourseSection, error) {
	var out []models.CourseSection
	for _, section := range s.byID {
		if section.TeacherID == teacherID {
			out = append(out, *section)
		}
	}
	return out, nil
}

func (s *sectionStoreStub) ListByStudent(context.Context, string) ([]models.CourseSection, error) {
	return nil, nil
}

type assessmentStoreStub struct{}

func (s *assessmentStoreStub) ListBySection(context.Context, string) ([]models.Assessment, error) {
	return nil, nil
}

func (s *assessmentStoreStub) FindByID(context.Context, string) (*models.Assessment, error) {
	return nil, sql.ErrNoRows
}

func (s *assessmentStoreStub) Create(context.Context, *models.Assessment) error { return nil }

func (s *assessmentStoreStub) Delete(context.Context, string) error { return nil }

type enrollmentStoreStub struct{}

func (s *enrollmentStoreStub) List(context.Context, models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	return nil, 0, nil
}

func (s *enrollmentStoreStub) FindByID(context.Context, string) (*models.Enrollment, error) {
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) ExistsActive(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *enrollmentStoreStub) ListActiveBySection(context.Context, string) ([]models.Enrollment, error) {
	return nil, nil
}

func (s *enrollmentStoreStub) Create(context.Context, *models.Enrollment) error { return nil }

func (s *enrollmentStoreStub) UpdateStatus(context.Context, string, grading.Status, *float64, *time.Time) error {
	return nil
}

func (s *enrollmentStoreStub) Delete(context.Context, string) error { return nil }

type gradeStoreStub struct{}

func (s *gradeStoreStub) ListByEnrollment(context.Context, string) ([]models.AssessmentGrade, error) {
	return nil, nil
}

func (s *gradeStoreStub) Create(context.Context, *models.AssessmentGrade) error { return nil }

func (s *gradeStoreStub) Delete(context.Context, string) error { return nil }

type cacheStub struct{}

func (s *cacheStub) Get(context.Context, string, interface{}) error { return appErrors.ErrCacheMiss }

func (s *cacheStub) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (s *cacheStub) Delete(context.Context, string) error { return nil }

func (s *cacheStub) DeleteByPattern(context.Context, string) error { return nil }
