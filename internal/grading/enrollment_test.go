package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentLifecycle(t *testing.T) {
	e := NewEnrollment("student-1", "section-1")
	assert.Equal(t, StatusPlanned, e.Status())

	require.NoError(t, e.Start())
	assert.Equal(t, StatusInProgress, e.Status())

	var transitionErr *TransitionError
	assert.ErrorAs(t, e.Start(), &transitionErr)

	require.NoError(t, e.Withdraw())
	assert.Equal(t, StatusWithdrawn, e.Status())
	assert.ErrorAs(t, e.Withdraw(), &transitionErr)

	_, err := e.Complete(50)
	assert.ErrorAs(t, err, &transitionErr)
}

func TestEnrollmentCompletePassing(t *testing.T) {
	e := NewEnrollment("student-1", "section-1")
	require.NoError(t, e.Start())
	require.NoError(t, e.Ledger().Add(mustGrade(t, AssessmentStandard, 100, 80, 100, 40)))

	passed, err := e.Complete(70)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Equal(t, StatusCompleted, e.Status())

	final, ok := e.Ledger().Final()
	require.True(t, ok)
	assert.InDelta(t, 80, final.Scored(), 1e-9)
}

func TestEnrollmentCompleteFailingStaysInProgress(t *testing.T) {
	e := NewEnrollment("student-1", "section-1")
	require.NoError(t, e.Start())
	require.NoError(t, e.Ledger().Add(mustGrade(t, AssessmentStandard, 100, 40, 100, 40)))

	passed, err := e.Complete(70)
	require.NoError(t, err)
	assert.False(t, passed)

	// A failed verdict declines completion: no terminal state, no final
	// grade, another attempt stays possible.
	assert.Equal(t, StatusInProgress, e.Status())
	_, ok := e.Ledger().Final()
	assert.False(t, ok)
}

func TestParseHelpers(t *testing.T) {
	status, err := ParseStatus("COMPLETED")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
	_, err = ParseStatus("DONE")
	assert.Error(t, err)

	typ, err := ParseAssessmentType("MANDATORY_PASS")
	require.NoError(t, err)
	assert.Equal(t, AssessmentMandatoryPass, typ)
	_, err = ParseAssessmentType("EXTRA")
	assert.Error(t, err)
}

func TestGradeKinds(t *testing.T) {
	g, err := NewGrade(40, 50, 25)
	require.NoError(t, err)
	assert.True(t, g.IsPassing())
	require.NoError(t, g.SetTotal(60))
	assert.InDelta(t, 60, g.Total(), 1e-9)

	final, err := NewFinalCourseGrade(88, 60)
	require.NoError(t, err)
	assert.ErrorIs(t, final.SetTotal(110), ErrTotalFixed)
	assert.Error(t, final.SetScored(120))
	require.NoError(t, final.SetScored(90))
	assert.InDelta(t, 90, final.Scored(), 1e-9)
}
