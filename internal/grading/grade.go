package grading

import (
	"errors"
	"fmt"
)

// GradeKind distinguishes assessment-level grade values from the final
// course grade, whose total is pinned at 100.
type GradeKind string

const (
	// KindAssessment allows the total to be adjusted.
	KindAssessment GradeKind = "ASSESSMENT"
	// KindFinalCourse fixes the total at 100.
	KindFinalCourse GradeKind = "FINAL_COURSE"
)

// FinalCourseTotal is the immutable total for final course grades.
const FinalCourseTotal = 100.0

// ErrTotalFixed is returned when attempting to change the total of a final
// course grade.
var ErrTotalFixed = errors.New("final course grade total is fixed at 100")

// Grade is a scored/total/passing triple tagged with its kind. The kind
// decides whether the total may be reassigned.
type Grade struct {
	kind    GradeKind
	scored  float64
	total   float64
	passing float64
}

// NewGrade builds an assessment-kind grade value.
func NewGrade(scored, total, passing float64) (Grade, error) {
	if total <= 0 {
		return Grade{}, fmt.Errorf("total grade must be positive, got %.2f", total)
	}
	if scored < 0 || scored > total {
		return Grade{}, fmt.Errorf("scored grade %.2f out of range [0, %.2f]", scored, total)
	}
	return Grade{kind: KindAssessment, scored: scored, total: total, passing: passing}, nil
}

// NewFinalCourseGrade builds a final course grade with its total pinned
// at 100.
func NewFinalCourseGrade(scored, passing float64) (Grade, error) {
	if scored < 0 || scored > FinalCourseTotal {
		return Grade{}, fmt.Errorf("scored grade %.2f out of range [0, %.2f]", scored, FinalCourseTotal)
	}
	return Grade{kind: KindFinalCourse, scored: scored, total: FinalCourseTotal, passing: passing}, nil
}

// Kind returns the grade's kind.
func (g Grade) Kind() GradeKind { return g.kind }

// Scored returns the scored value.
func (g Grade) Scored() float64 { return g.scored }

// Total returns the total value.
func (g Grade) Total() float64 { return g.total }

// Passing returns the passing threshold.
func (g Grade) Passing() float64 { return g.passing }

// SetScored updates the scored value within [0, total].
func (g *Grade) SetScored(v float64) error {
	if v < 0 || v > g.total {
		return fmt.Errorf("scored grade %.2f out of range [0, %.2f]", v, g.total)
	}
	g.scored = v
	return nil
}

// SetTotal updates the total for assessment-kind grades. Final course grades
// reject the change: their total is fixed at 100.
func (g *Grade) SetTotal(v float64) error {
	if g.kind == KindFinalCourse {
		return ErrTotalFixed
	}
	if v <= 0 {
		return fmt.Errorf("total grade must be positive, got %.2f", v)
	}
	g.total = v
	if g.scored > v {
		g.scored = v
	}
	return nil
}

// IsPassing reports whether the scored value meets the passing threshold.
func (g Grade) IsPassing() bool { return g.scored >= g.passing }
