package timetable

// Conflicts reports whether two windows collide: their date ranges overlap
// and at least one shared weekday has overlapping time slots. The time check
// uses closed intervals, so a session that ends exactly when another begins
// still conflicts. The predicate is pure and commutative.
func Conflicts(a, b *Window) bool {
	if a == nil || b == nil {
		return false
	}
	if a.end.Before(b.start) || b.end.Before(a.start) {
		return false
	}
	aMinutes := int(a.duration.Minutes())
	bMinutes := int(b.duration.Minutes())
	for day, aStart := range a.pattern.entries {
		bStart, ok := b.pattern.entries[day]
		if !ok {
			continue
		}
		aEnd := aStart.Minutes() + aMinutes
		bEnd := bStart.Minutes() + bMinutes
		if aEnd >= bStart.Minutes() && bEnd >= aStart.Minutes() {
			return true
		}
	}
	return false
}
