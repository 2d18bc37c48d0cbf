package models

import "time"

// Assessment describes one graded activity belonging to a course section.
// The exam window columns are optional: when set, the assessment occupies a
// single-day schedule window of its own.
type Assessment struct {
	ID              string     `db:"id" json:"id"`
	SectionID       string     `db:"section_id" json:"section_id"`
	Title           string     `db:"title" json:"title"`
	Type            string     `db:"type" json:"type"`
	Weightage       float64    `db:"weightage" json:"weightage"`
	TotalGrade      float64    `db:"total_grade" json:"total_grade"`
	PassingGrade    float64    `db:"passing_grade" json:"passing_grade"`
	ExamDate        *time.Time `db:"exam_date" json:"exam_date,omitempty"`
	ExamStartTime   *string    `db:"exam_start_time" json:"exam_start_time,omitempty"`
	DurationMinutes *int       `db:"duration_minutes" json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// AssessmentGrade records a student's score on one assessment within an
// enrollment.
type AssessmentGrade struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	AssessmentID string    `db:"assessment_id" json:"assessment_id"`
	ScoredGrade  float64   `db:"scored_grade" json:"scored_grade"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeSummary pairs an assessment with its recorded grade and derived
// contribution, for report output.
type GradeSummary struct {
	AssessmentID string  `json:"assessment_id"`
	Title        string  `json:"title"`
	Type         string  `json:"type"`
	Weightage    float64 `json:"weightage"`
	ScoredGrade  float64 `json:"scored_grade"`
	TotalGrade   float64 `json:"total_grade"`
	Contribution float64 `json:"contribution"`
}

// ReportCard aggregates an enrollment's grades with the final verdict.
type ReportCard struct {
	EnrollmentID   string         `json:"enrollment_id"`
	StudentID      string         `json:"student_id"`
	SectionID      string         `json:"section_id"`
	Grades         []GradeSummary `json:"grades"`
	WeightageTotal float64        `json:"weightage_total"`
	FinalGrade     float64        `json:"final_grade"`
	PassingGrade   float64        `json:"passing_grade"`
	Passed         bool           `json:"passed"`
}

// ExportArtifact describes a report file persisted to the export store,
// downloadable through a signed token.
type ExportArtifact struct {
	FileName  string    `json:"file_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
