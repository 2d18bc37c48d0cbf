package timetable

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors for window construction and mutation.
var (
	ErrEmptyPattern        = errors.New("pattern must contain at least one weekday")
	ErrNonPositiveDuration = errors.New("duration must be positive")
)

// RangeError reports a start date after its end date.
type RangeError struct {
	Start time.Time
	End   time.Time
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	return fmt.Sprintf("start date %s is after end date %s",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

// Window is a weekly recurring pattern bounded by an inclusive date range.
// The concrete occurrence dates are derived state: they are recomputed by
// every mutator and never settable directly.
type Window struct {
	tag         string
	pattern     *Pattern
	duration    time.Duration
	start       time.Time
	end         time.Time
	occurrences []time.Time
}

// NewWindow constructs a window and eagerly computes its occurrences. The
// pattern is cloned so later mutation of the caller's copy cannot desync the
// derived occurrence list.
func NewWindow(pattern *Pattern, duration time.Duration, start, end time.Time) (*Window, error) {
	if pattern == nil || pattern.Len() == 0 {
		return nil, ErrEmptyPattern
	}
	if duration <= 0 {
		return nil, ErrNonPositiveDuration
	}
	start, end = DateOf(start), DateOf(end)
	if start.After(end) {
		return nil, &RangeError{Start: start, End: end}
	}
	w := &Window{pattern: pattern.Clone(), duration: duration, start: start, end: end}
	w.recompute()
	return w, nil
}

// Tag returns the caller-assigned identity label, if any.
func (w *Window) Tag() string { return w.tag }

// SetTag attaches an opaque identity label used in conflict diagnostics.
func (w *Window) SetTag(tag string) { w.tag = tag }

// Pattern returns a copy of the weekly pattern.
func (w *Window) Pattern() *Pattern { return w.pattern.Clone() }

// Duration returns the meeting duration.
func (w *Window) Duration() time.Duration { return w.duration }

// StartDate returns the inclusive range start.
func (w *Window) StartDate() time.Time { return w.start }

// EndDate returns the inclusive range end.
func (w *Window) EndDate() time.Time { return w.end }

// Occurrences returns the concrete meeting dates in ascending order.
func (w *Window) Occurrences() []time.Time {
	out := make([]time.Time, len(w.occurrences))
	copy(out, w.occurrences)
	return out
}

// SetPattern replaces the weekly pattern and recomputes occurrences.
func (w *Window) SetPattern(pattern *Pattern) error {
	if pattern == nil || pattern.Len() == 0 {
		return ErrEmptyPattern
	}
	w.pattern = pattern.Clone()
	w.recompute()
	return nil
}

// SetStartDate moves the range start and recomputes occurrences.
func (w *Window) SetStartDate(d time.Time) error {
	d = DateOf(d)
	if d.After(w.end) {
		return &RangeError{Start: d, End: w.end}
	}
	w.start = d
	w.recompute()
	return nil
}

// SetEndDate moves the range end and recomputes occurrences.
func (w *Window) SetEndDate(d time.Time) error {
	d = DateOf(d)
	if w.start.After(d) {
		return &RangeError{Start: w.start, End: d}
	}
	w.end = d
	w.recompute()
	return nil
}

// AddDay upserts a weekday entry and recomputes occurrences. Adding the same
// (weekday, time) pair twice is a no-op.
func (w *Window) AddDay(day time.Weekday, at TimeOfDay) {
	if current, ok := w.pattern.At(day); ok && current == at {
		return
	}
	w.pattern.Set(day, at)
	w.recompute()
}

// RemoveDay deletes a weekday entry and recomputes occurrences. The last
// remaining weekday cannot be removed: a window without a pattern is invalid.
func (w *Window) RemoveDay(day time.Weekday) error {
	if !w.pattern.Contains(day) {
		return ErrDayNotFound
	}
	if w.pattern.Len() == 1 {
		return ErrEmptyPattern
	}
	if err := w.pattern.Remove(day); err != nil {
		return err
	}
	w.recompute()
	return nil
}

// recompute rebuilds the derived occurrence list: every date in
// [start, end] whose weekday appears in the pattern, ascending.
func (w *Window) recompute() {
	occurrences := w.occurrences[:0]
	for d := w.start; !d.After(w.end); d = d.AddDate(0, 0, 1) {
		if w.pattern.Contains(d.Weekday()) {
			occurrences = append(occurrences, d)
		}
	}
	w.occurrences = occurrences
}
