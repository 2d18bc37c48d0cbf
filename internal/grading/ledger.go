package grading

import (
	"errors"
	"fmt"
	"sync"
)

// WeightageBudget is the maximum combined weightage of non-bonus
// assessments in one ledger.
const WeightageBudget = 100.0

// ErrFinalCommitted is returned when committing a final grade twice.
var ErrFinalCommitted = errors.New("final grade already committed")

// WeightageExceededError reports an assessment grade whose weightage would
// overrun the non-bonus budget.
type WeightageExceededError struct {
	Current   float64
	Attempted float64
	Excess    float64
}

// Error implements the error interface.
func (e *WeightageExceededError) Error() string {
	return fmt.Sprintf("weightage budget exceeded: current %.2f + attempted %.2f overruns %.0f by %.2f",
		e.Current, e.Attempted, WeightageBudget, e.Excess)
}

// Ledger accumulates the weighted assessment grades of one enrollment.
// Additions serialise on the ledger's own lock so concurrent submissions
// cannot overrun the weightage budget.
type Ledger struct {
	mu      sync.Mutex
	entries []AssessmentGrade
	final   *Grade
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Add appends an assessment grade. Bonus grades are appended
// unconditionally; any other grade is rejected with WeightageExceededError
// when the non-bonus weightage sum plus its own weightage would exceed the
// budget. The ledger is unchanged on failure.
func (l *Ledger) Add(g AssessmentGrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !g.Assessment.Type.IsBonus() {
		current := l.nonBonusTotalLocked()
		if current+g.Assessment.Weightage > WeightageBudget {
			return &WeightageExceededError{
				Current:   current,
				Attempted: g.Assessment.Weightage,
				Excess:    current + g.Assessment.Weightage - WeightageBudget,
			}
		}
	}
	l.entries = append(l.entries, g)
	return nil
}

// WeightageTotal sums the weightage of every held grade, bonus included.
// Only the non-bonus share counts against the budget check in Add.
func (l *Ledger) WeightageTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for _, g := range l.entries {
		total += g.Assessment.Weightage
	}
	return total
}

func (l *Ledger) nonBonusTotalLocked() float64 {
	total := 0.0
	for _, g := range l.entries {
		if !g.Assessment.Type.IsBonus() {
			total += g.Assessment.Weightage
		}
	}
	return total
}

// Entries returns a snapshot of the held grades.
func (l *Ledger) Entries() []AssessmentGrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AssessmentGrade, len(l.entries))
	copy(out, l.entries)
	return out
}

// CalculateFinal sums all contributions capped at 100. Pure: it never
// stores anything.
func (l *Ledger) CalculateFinal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calculateFinalLocked()
}

func (l *Ledger) calculateFinalLocked() float64 {
	sum := 0.0
	for _, g := range l.entries {
		sum += g.Contribution()
	}
	if sum > FinalCourseTotal {
		return FinalCourseTotal
	}
	return sum
}

// CommitFinal stores the calculated final grade. It is the single mutating
// finalisation step and may run only once.
func (l *Ledger) CommitFinal(passing float64) (Grade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.final != nil {
		return *l.final, ErrFinalCommitted
	}
	final, err := NewFinalCourseGrade(l.calculateFinalLocked(), passing)
	if err != nil {
		return Grade{}, err
	}
	l.final = &final
	return final, nil
}

// Final returns the committed final grade, if any.
func (l *Ledger) Final() (Grade, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.final == nil {
		return Grade{}, false
	}
	return *l.final, true
}

// Passed decides the pass verdict. Any mandatory-pass assessment scored
// below its own passing grade fails the enrollment regardless of the
// aggregate; otherwise the enrollment passes iff the calculated final grade
// meets the section's passing grade.
func (l *Ledger) Passed(sectionPassing float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, g := range l.entries {
		if g.Assessment.Type == AssessmentMandatoryPass && g.BelowPassing() {
			return false
		}
	}
	return l.calculateFinalLocked() >= sectionPassing
}
