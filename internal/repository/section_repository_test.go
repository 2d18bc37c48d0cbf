package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-core-api/internal/models"
)

func newSectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sectionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "course_id", "session_id", "room_id", "teacher_id", "capacity", "passing_grade", "duration_minutes", "start_date", "end_date", "created_at", "updated_at"})
}

func meetingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "section_id", "day_of_week", "start_time"})
}

func TestSectionRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, session_id, room_id, teacher_id, capacity, passing_grade, duration_minutes, start_date, end_date, created_at, updated_at FROM course_sections WHERE id = $1 LIMIT 1")).
		WithArgs("sec-1").
		WillReturnRows(sectionRows().AddRow("sec-1", "course-1", "sess-1", "room-1", "teacher-1", 30, 60.0, 90, time.Now(), time.Now(), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, section_id, day_of_week, start_time FROM section_meetings WHERE section_id = $1 ORDER BY day_of_week")).
		WithArgs("sec-1").
		WillReturnRows(meetingRows().AddRow("m-1", "sec-1", "MONDAY", "09:00").AddRow("m-2", "sec-1", "WEDNESDAY", "09:00"))

	section, err := repo.FindByID(context.Background(), "sec-1")
	require.NoError(t, err)
	assert.Equal(t, "room-1", section.RoomID)
	assert.Len(t, section.Meetings, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryListByRoom(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, session_id, room_id, teacher_id, capacity, passing_grade, duration_minutes, start_date, end_date, created_at, updated_at FROM course_sections WHERE room_id = $1")).
		WithArgs("room-1").
		WillReturnRows(sectionRows().AddRow("sec-1", "course-1", "sess-1", "room-1", "teacher-1", 30, 60.0, 90, time.Now(), time.Now(), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, section_id, day_of_week, start_time FROM section_meetings WHERE section_id = $1 ORDER BY day_of_week")).
		WithArgs("sec-1").
		WillReturnRows(meetingRows().AddRow("m-1", "sec-1", "FRIDAY", "13:00"))

	sections, err := repo.ListByRoom(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "FRIDAY", sections[0].Meetings[0].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO course_sections").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO section_meetings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "MONDAY", "09:00").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	section := &models.CourseSection{
		CourseID:        "course-1",
		SessionID:       "sess-1",
		RoomID:          "room-1",
		TeacherID:       "teacher-1",
		DurationMinutes: 90,
		StartDate:       time.Now(),
		EndDate:         time.Now().AddDate(0, 3, 0),
		Meetings:        []models.MeetingTime{{DayOfWeek: "MONDAY", StartTime: "09:00"}},
	}
	err := repo.Create(context.Background(), section)
	require.NoError(t, err)
	assert.NotEmpty(t, section.ID)
	assert.Equal(t, section.ID, section.Meetings[0].SectionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newSectionRepoMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM section_meetings WHERE section_id = $1")).
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_sections WHERE id = $1")).
		WithArgs("sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "sec-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
