package timetable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mondayPattern(at TimeOfDay) *Pattern {
	p := NewPattern()
	p.Set(time.Monday, at)
	return p
}

func TestParseTimeOfDay(t *testing.T) {
	at, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, "09:30", at.String())

	_, err = ParseTimeOfDay("24:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("0900")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)
	assert.Equal(t, "MONDAY", FormatWeekday(day))

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestPatternUpsertAndRemove(t *testing.T) {
	p := NewPattern()
	p.Set(time.Monday, MustTimeOfDay(9, 0))
	p.Set(time.Monday, MustTimeOfDay(10, 0))
	require.Equal(t, 1, p.Len())

	at, ok := p.At(time.Monday)
	require.True(t, ok)
	assert.Equal(t, MustTimeOfDay(10, 0), at)

	assert.ErrorIs(t, p.Remove(time.Friday), ErrDayNotFound)
	require.NoError(t, p.Remove(time.Monday))
	assert.Equal(t, 0, p.Len())
}

func TestNewWindowValidation(t *testing.T) {
	pattern := mondayPattern(MustTimeOfDay(9, 0))

	_, err := NewWindow(NewPattern(), time.Hour, date(2020, 1, 6), date(2020, 1, 27))
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = NewWindow(pattern, 0, date(2020, 1, 6), date(2020, 1, 27))
	assert.ErrorIs(t, err, ErrNonPositiveDuration)

	_, err = NewWindow(pattern, time.Hour, date(2020, 1, 27), date(2020, 1, 6))
	var rangeErr *RangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestWindowOccurrencesFourMondays(t *testing.T) {
	w, err := NewWindow(mondayPattern(MustTimeOfDay(9, 0)), time.Hour, date(2020, 1, 6), date(2020, 1, 27))
	require.NoError(t, err)

	expected := []time.Time{
		date(2020, 1, 6),
		date(2020, 1, 13),
		date(2020, 1, 20),
		date(2020, 1, 27),
	}
	assert.Equal(t, expected, w.Occurrences())
}

func TestWindowSingleDateRange(t *testing.T) {
	monday := date(2020, 1, 6)
	w, err := NewWindow(mondayPattern(MustTimeOfDay(9, 0)), time.Hour, monday, monday)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{monday}, w.Occurrences())
}

func TestWindowMutatorsRecompute(t *testing.T) {
	w, err := NewWindow(mondayPattern(MustTimeOfDay(9, 0)), time.Hour, date(2020, 1, 6), date(2020, 1, 27))
	require.NoError(t, err)
	require.Len(t, w.Occurrences(), 4)

	w.AddDay(time.Wednesday, MustTimeOfDay(14, 0))
	assert.Len(t, w.Occurrences(), 8)

	// Same (weekday, time) pair is idempotent.
	before := w.Occurrences()
	w.AddDay(time.Wednesday, MustTimeOfDay(14, 0))
	assert.Equal(t, before, w.Occurrences())

	require.NoError(t, w.SetEndDate(date(2020, 1, 20)))
	assert.Len(t, w.Occurrences(), 6)

	require.NoError(t, w.RemoveDay(time.Wednesday))
	assert.Len(t, w.Occurrences(), 3)

	assert.ErrorIs(t, w.RemoveDay(time.Friday), ErrDayNotFound)
	assert.ErrorIs(t, w.RemoveDay(time.Monday), ErrEmptyPattern)

	var rangeErr *RangeError
	assert.ErrorAs(t, w.SetStartDate(date(2020, 2, 1)), &rangeErr)
	assert.ErrorAs(t, w.SetEndDate(date(2019, 12, 31)), &rangeErr)
}

func TestWindowPatternIsolated(t *testing.T) {
	pattern := mondayPattern(MustTimeOfDay(9, 0))
	w, err := NewWindow(pattern, time.Hour, date(2020, 1, 6), date(2020, 1, 27))
	require.NoError(t, err)

	// Mutating the caller's pattern must not desync the window.
	pattern.Set(time.Tuesday, MustTimeOfDay(8, 0))
	assert.Len(t, w.Occurrences(), 4)

	// Same for the accessor's copy.
	w.Pattern().Set(time.Friday, MustTimeOfDay(8, 0))
	assert.Len(t, w.Occurrences(), 4)
}
