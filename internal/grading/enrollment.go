package grading

import (
	"fmt"
	"sync"
)

// Status is the lifecycle state of an enrollment.
type Status string

// Enrollment lifecycle: PLANNED -> IN_PROGRESS -> {COMPLETED | WITHDRAWN}.
const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusWithdrawn  Status = "WITHDRAWN"
)

// ParseStatus validates an enrollment status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusWithdrawn:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid enrollment status %q", s)
}

// TransitionError reports an illegal status transition.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition enrollment from %s to %s", e.From, e.To)
}

// Enrollment ties a student to a course section and owns the grade ledger
// accumulated over the course lifetime.
type Enrollment struct {
	StudentID string
	SectionID string

	mu     sync.Mutex
	status Status
	ledger *Ledger
}

// NewEnrollment creates a planned enrollment with an empty ledger.
func NewEnrollment(studentID, sectionID string) *Enrollment {
	return &Enrollment{
		StudentID: studentID,
		SectionID: sectionID,
		status:    StatusPlanned,
		ledger:    NewLedger(),
	}
}

// RestoreEnrollment rebuilds an enrollment from persisted state.
func RestoreEnrollment(studentID, sectionID string, status Status, ledger *Ledger) *Enrollment {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Enrollment{StudentID: studentID, SectionID: sectionID, status: status, ledger: ledger}
}

// Status returns the current lifecycle state.
func (e *Enrollment) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Ledger returns the enrollment's grade ledger.
func (e *Enrollment) Ledger() *Ledger { return e.ledger }

// Start moves a planned enrollment into progress.
func (e *Enrollment) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPlanned {
		return &TransitionError{From: e.status, To: StatusInProgress}
	}
	e.status = StatusInProgress
	return nil
}

// Withdraw terminates a planned or in-progress enrollment.
func (e *Enrollment) Withdraw() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPlanned && e.status != StatusInProgress {
		return &TransitionError{From: e.status, To: StatusWithdrawn}
	}
	e.status = StatusWithdrawn
	return nil
}

// Complete attempts course completion. When the ledger's pass verdict holds,
// the final grade is committed and the enrollment becomes COMPLETED. When it
// does not, the enrollment deliberately stays IN_PROGRESS and no final grade
// is stored; the verdict is returned either way.
func (e *Enrollment) Complete(sectionPassing float64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusInProgress {
		return false, &TransitionError{From: e.status, To: StatusCompleted}
	}
	if !e.ledger.Passed(sectionPassing) {
		return false, nil
	}
	if _, err := e.ledger.CommitFinal(sectionPassing); err != nil && err != ErrFinalCommitted {
		return false, err
	}
	e.status = StatusCompleted
	return true, nil
}
