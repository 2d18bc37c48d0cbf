package timetable

import (
	"errors"
	"sort"
	"time"
)

// ErrDayNotFound is returned when removing a weekday that is not part of a
// pattern.
var ErrDayNotFound = errors.New("weekday not present in pattern")

// Pattern is a weekly recurring meeting template: at most one start time per
// weekday. Setting an already-present weekday replaces its time.
type Pattern struct {
	entries map[time.Weekday]TimeOfDay
}

// NewPattern returns an empty pattern.
func NewPattern() *Pattern {
	return &Pattern{entries: make(map[time.Weekday]TimeOfDay)}
}

// Set upserts the start time for a weekday.
func (p *Pattern) Set(day time.Weekday, at TimeOfDay) {
	if p.entries == nil {
		p.entries = make(map[time.Weekday]TimeOfDay)
	}
	p.entries[day] = at
}

// Remove deletes a weekday entry. It fails with ErrDayNotFound when the
// weekday is absent.
func (p *Pattern) Remove(day time.Weekday) error {
	if _, ok := p.entries[day]; !ok {
		return ErrDayNotFound
	}
	delete(p.entries, day)
	return nil
}

// At reports the start time for a weekday, if present.
func (p *Pattern) At(day time.Weekday) (TimeOfDay, bool) {
	at, ok := p.entries[day]
	return at, ok
}

// Contains reports whether the weekday has an entry.
func (p *Pattern) Contains(day time.Weekday) bool {
	_, ok := p.entries[day]
	return ok
}

// Len returns the number of weekday entries.
func (p *Pattern) Len() int { return len(p.entries) }

// Weekdays returns the pattern's weekdays in ascending order (Sunday first,
// matching time.Weekday).
func (p *Pattern) Weekdays() []time.Weekday {
	days := make([]time.Weekday, 0, len(p.entries))
	for day := range p.entries {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Clone returns an independent copy of the pattern.
func (p *Pattern) Clone() *Pattern {
	clone := NewPattern()
	if p == nil {
		return clone
	}
	for day, at := range p.entries {
		clone.entries[day] = at
	}
	return clone
}
