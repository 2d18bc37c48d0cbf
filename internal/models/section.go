package models

import "time"

// MeetingTime is one weekly meeting entry of a course section: a weekday
// plus a start time ("HH:MM"). A section has at most one entry per weekday.
type MeetingTime struct {
	ID        string `db:"id" json:"id"`
	SectionID string `db:"section_id" json:"section_id"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
}

// CourseSection represents one offered instance of a course: a room, a
// teacher and a weekly meeting pattern bounded by the session date range.
type CourseSection struct {
	ID              string        `db:"id" json:"id"`
	CourseID        string        `db:"course_id" json:"course_id"`
	SessionID       string        `db:"session_id" json:"session_id"`
	RoomID          string        `db:"room_id" json:"room_id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	Capacity        int           `db:"capacity" json:"capacity"`
	PassingGrade    float64       `db:"passing_grade" json:"passing_grade"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	StartDate       time.Time     `db:"start_date" json:"start_date"`
	EndDate         time.Time     `db:"end_date" json:"end_date"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
	Meetings        []MeetingTime `json:"meetings,omitempty"`
}

// SectionFilter describes query params for listing sections.
type SectionFilter struct {
	CourseID  string
	SessionID string
	RoomID    string
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SectionOccurrences lists the concrete meeting dates of a section.
type SectionOccurrences struct {
	SectionID string      `json:"section_id"`
	Dates     []time.Time `json:"dates"`
}
