package grading

import (
	"fmt"

	"github.com/campuskit/campus-core-api/internal/timetable"
)

// AssessmentType classifies how an assessment counts toward the final grade.
type AssessmentType string

const (
	// AssessmentStandard counts against the 100% weightage budget.
	AssessmentStandard AssessmentType = "STANDARD"
	// AssessmentBonus is exempt from the weightage budget.
	AssessmentBonus AssessmentType = "BONUS"
	// AssessmentMandatoryPass counts against the budget and additionally
	// fails the whole enrollment when scored below its passing grade.
	AssessmentMandatoryPass AssessmentType = "MANDATORY_PASS"
)

// ParseAssessmentType validates an assessment type string.
func ParseAssessmentType(s string) (AssessmentType, error) {
	switch AssessmentType(s) {
	case AssessmentStandard, AssessmentBonus, AssessmentMandatoryPass:
		return AssessmentType(s), nil
	}
	return "", fmt.Errorf("invalid assessment type %q", s)
}

// IsBonus reports whether the type is exempt from the weightage budget.
func (t AssessmentType) IsBonus() bool { return t == AssessmentBonus }

// Assessment describes one graded activity within a course section.
type Assessment struct {
	ID        string
	Type      AssessmentType
	Weightage float64
	Window    *timetable.Window
}

// AssessmentGrade records a student's score on one assessment.
type AssessmentGrade struct {
	Assessment Assessment
	Scored     float64
	Total      float64
	Passing    float64
}

// NewAssessmentGrade validates and builds an assessment grade. The scored
// value must lie in [0, total]; an earlier variant of this check used `&&`
// where `||` was intended and silently accepted everything, so the range is
// enforced deliberately here.
func NewAssessmentGrade(a Assessment, scored, total, passing float64) (AssessmentGrade, error) {
	if total <= 0 {
		return AssessmentGrade{}, fmt.Errorf("total grade must be positive, got %.2f", total)
	}
	if scored < 0 || scored > total {
		return AssessmentGrade{}, fmt.Errorf("scored grade %.2f out of range [0, %.2f]", scored, total)
	}
	if a.Weightage < 0 || a.Weightage > 100 {
		return AssessmentGrade{}, fmt.Errorf("weightage %.2f out of range [0, 100]", a.Weightage)
	}
	return AssessmentGrade{Assessment: a, Scored: scored, Total: total, Passing: passing}, nil
}

// Contribution returns the grade's share of the final course grade:
// (scored/total) * weightage.
func (g AssessmentGrade) Contribution() float64 {
	if g.Total == 0 {
		return 0
	}
	return g.Scored / g.Total * g.Assessment.Weightage
}

// BelowPassing reports whether the score misses the assessment's own
// passing threshold.
func (g AssessmentGrade) BelowPassing() bool {
	return g.Scored < g.Passing
}
