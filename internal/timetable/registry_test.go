package timetable

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndConflict(t *testing.T) {
	reg := NewRegistry(OwnerRoom, "room-101")

	first := mustWindow(t, time.Monday, MustTimeOfDay(9, 0), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
	first.SetTag("section-a")
	require.NoError(t, reg.Add(first))

	clashing := mustWindow(t, time.Monday, MustTimeOfDay(9, 30), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
	err := reg.Add(clashing)
	require.Error(t, err)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, OwnerRoom, conflictErr.OwnerKind)
	assert.Equal(t, "room-101", conflictErr.OwnerID)
	assert.Same(t, first, conflictErr.Existing)
	assert.Contains(t, conflictErr.Error(), "section-a")

	// Failed add leaves the registry unchanged.
	assert.Equal(t, []*Window{first}, reg.Windows())
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry(OwnerTeacher, "teacher-1")
	w := mustWindow(t, time.Tuesday, MustTimeOfDay(8, 0), time.Hour, date(2020, 1, 1), date(2020, 6, 30))
	require.NoError(t, reg.Add(w))

	assert.True(t, reg.Remove(w))
	assert.False(t, reg.Remove(w))
	assert.Equal(t, 0, reg.Len())

	// Removing frees the slot for a conflicting window.
	other := mustWindow(t, time.Tuesday, MustTimeOfDay(8, 30), time.Hour, date(2020, 1, 1), date(2020, 6, 30))
	assert.NoError(t, reg.Add(other))
}

func TestRegistryConcurrentAdds(t *testing.T) {
	reg := NewRegistry(OwnerStudent, "student-9")

	// All windows share the Monday 09:00 slot, so exactly one add can win.
	var wg sync.WaitGroup
	results := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := mustWindow(t, time.Monday, MustTimeOfDay(9, 0), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
			results <- reg.Add(w)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, reg.Len())
}

func TestBookAllAtomicity(t *testing.T) {
	room := NewRegistry(OwnerRoom, "room-101")
	teacher := NewRegistry(OwnerTeacher, "teacher-1")

	// Pre-book the teacher so the combined booking must fail.
	busy := mustWindow(t, time.Monday, MustTimeOfDay(9, 0), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
	require.NoError(t, teacher.Add(busy))

	w := mustWindow(t, time.Monday, MustTimeOfDay(9, 30), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
	err := BookAll(w, room, teacher)
	require.Error(t, err)

	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, OwnerTeacher, conflictErr.OwnerKind)

	// No partial booking: the room stays empty too.
	assert.Equal(t, 0, room.Len())
	assert.Equal(t, 1, teacher.Len())
}

func TestBookAllSuccessAndRelease(t *testing.T) {
	room := NewRegistry(OwnerRoom, "room-101")
	teacher := NewRegistry(OwnerTeacher, "teacher-1")

	w := mustWindow(t, time.Monday, MustTimeOfDay(9, 0), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
	require.NoError(t, BookAll(w, room, teacher))
	assert.Equal(t, 1, room.Len())
	assert.Equal(t, 1, teacher.Len())

	ReleaseAll(w, room, teacher)
	assert.Equal(t, 0, room.Len())
	assert.Equal(t, 0, teacher.Len())
}

func TestBookAllConcurrentNoDeadlock(t *testing.T) {
	dir := NewDirectory()
	room := dir.For(OwnerRoom, "room-101")
	teacher := dir.For(OwnerTeacher, "teacher-1")

	var wg sync.WaitGroup
	wins := make(chan struct{}, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		order := i%2 == 0
		go func(flip bool) {
			defer wg.Done()
			w := mustWindow(t, time.Monday, MustTimeOfDay(9, 0), time.Hour, date(2020, 1, 6), date(2020, 1, 31))
			var err error
			if flip {
				err = BookAll(w, teacher, room)
			} else {
				err = BookAll(w, room, teacher)
			}
			if err == nil {
				wins <- struct{}{}
			}
		}(order)
	}
	wg.Wait()
	close(wins)

	assert.Equal(t, 1, len(wins))
	assert.Equal(t, 1, room.Len())
	assert.Equal(t, 1, teacher.Len())
}

func TestDirectoryLazyCreation(t *testing.T) {
	dir := NewDirectory()
	a := dir.For(OwnerRoom, "room-101")
	b := dir.For(OwnerRoom, "room-101")
	assert.Same(t, a, b)
	assert.Equal(t, 1, dir.Size())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			dir.For(OwnerStudent, fmt.Sprintf("student-%d", n%4))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, dir.Size())
}
