package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// SectionRepository handles persistence of course sections and their weekly
// meeting entries.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = "id, course_id, session_id, room_id, teacher_id, capacity, passing_grade, duration_minutes, start_date, end_date, created_at, updated_at"

// List returns sections filtered by the provided criteria with total count.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.CourseSection, int, error) {
	base := "FROM course_sections WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"start_date": true,
		"end_date":   true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", sectionColumns, base, sortBy, order, size, offset)
	var sections []models.CourseSection
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section with its meeting entries.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.CourseSection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_sections WHERE id = $1 LIMIT 1", sectionColumns)
	var section models.CourseSection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	meetings, err := r.meetings(ctx, id)
	if err != nil {
		return nil, err
	}
	section.Meetings = meetings
	return &section, nil
}

// ListByRoom returns sections booked into a room, meetings included.
func (r *SectionRepository) ListByRoom(ctx context.Context, roomID string) ([]models.CourseSection, error) {
	return r.listByOwner(ctx, "room_id", roomID)
}

// ListByTeacher returns sections assigned to a teacher, meetings included.
func (r *SectionRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.CourseSection, error) {
	return r.listByOwner(ctx, "teacher_id", teacherID)
}

// ListByStudent returns sections the student is actively enrolled in,
// meetings included.
func (r *SectionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CourseSection, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_sections
WHERE id IN (SELECT section_id FROM enrollments WHERE student_id = $1 AND status IN ('PLANNED', 'IN_PROGRESS'))`,
		strings.ReplaceAll(sectionColumns, "id,", "course_sections.id,"))
	var sections []models.CourseSection
	if err := r.db.SelectContext(ctx, &sections, query, studentID); err != nil {
		return nil, fmt.Errorf("list student sections: %w", err)
	}
	return r.attachMeetings(ctx, sections)
}

func (r *SectionRepository) listByOwner(ctx context.Context, column, id string) ([]models.CourseSection, error) {
	query := fmt.Sprintf("SELECT %s FROM course_sections WHERE %s = $1", sectionColumns, column)
	var sections []models.CourseSection
	if err := r.db.SelectContext(ctx, &sections, query, id); err != nil {
		return nil, fmt.Errorf("list sections by %s: %w", column, err)
	}
	return r.attachMeetings(ctx, sections)
}

func (r *SectionRepository) attachMeetings(ctx context.Context, sections []models.CourseSection) ([]models.CourseSection, error) {
	for i := range sections {
		meetings, err := r.meetings(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Meetings = meetings
	}
	return sections, nil
}

func (r *SectionRepository) meetings(ctx context.Context, sectionID string) ([]models.MeetingTime, error) {
	const query = `SELECT id, section_id, day_of_week, start_time FROM section_meetings WHERE section_id = $1 ORDER BY day_of_week`
	var meetings []models.MeetingTime
	if err := r.db.SelectContext(ctx, &meetings, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section meetings: %w", err)
	}
	return meetings, nil
}

// Create persists a section together with its meeting entries in one
// transaction.
func (r *SectionRepository) Create(ctx context.Context, section *models.CourseSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.CreatedAt = now
	section.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create section: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertSection = `INSERT INTO course_sections (id, course_id, session_id, room_id, teacher_id, capacity, passing_grade, duration_minutes, start_date, end_date, created_at, updated_at)
        VALUES (:id, :course_id, :session_id, :room_id, :teacher_id, :capacity, :passing_grade, :duration_minutes, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertSection, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	if err := insertMeetings(ctx, tx, section); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create section: %w", err)
	}
	return nil
}

// UpdateSchedule replaces the section's schedule fields and meeting entries
// in one transaction.
func (r *SectionRepository) UpdateSchedule(ctx context.Context, section *models.CourseSection) error {
	section.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update section: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const updateSection = `UPDATE course_sections SET room_id = :room_id, teacher_id = :teacher_id, duration_minutes = :duration_minutes, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateSection, section); err != nil {
		return fmt.Errorf("update section: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM section_meetings WHERE section_id = $1`, section.ID); err != nil {
		return fmt.Errorf("clear section meetings: %w", err)
	}
	if err := insertMeetings(ctx, tx, section); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update section: %w", err)
	}
	return nil
}

// Delete removes a section and its meeting entries.
func (r *SectionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete section: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM section_meetings WHERE section_id = $1`, id); err != nil {
		return fmt.Errorf("delete section meetings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_sections WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete section: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete section: %w", err)
	}
	return nil
}

func insertMeetings(ctx context.Context, tx *sqlx.Tx, section *models.CourseSection) error {
	const insertMeeting = `INSERT INTO section_meetings (id, section_id, day_of_week, start_time) VALUES ($1, $2, $3, $4)`
	for i := range section.Meetings {
		meeting := &section.Meetings[i]
		if meeting.ID == "" {
			meeting.ID = uuid.NewString()
		}
		meeting.SectionID = section.ID
		if _, err := tx.ExecContext(ctx, insertMeeting, meeting.ID, meeting.SectionID, meeting.DayOfWeek, meeting.StartTime); err != nil {
			return fmt.Errorf("create section meeting: %w", err)
		}
	}
	return nil
}
