package timetable

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stitchadmin/internal/models"
)

func testTimetable(t *testing.T) *Timetable {
	t.Helper()
	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "timetable.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate(&models.TimetableSlot{}).Error)
	return New(db)
}

// allWeekMachine runs every day from 08:00 to 17:00.
func allWeekMachine() *models.Machine {
	m := &models.Machine{
		Type:               string(models.MachineTypeEmbroidery),
		Status:             string(models.MachineStatusActive),
		WorkdayStartMinute: 8 * 60,
		WorkdayEndMinute:   17 * 60,
		ActiveWeekdays:     "0123456",
	}
	m.ID = 1
	return m
}

// monday is a fixed Monday well inside the machine's window.
var monday = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func TestInsertRejectsOverlap(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	_, err := tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	_, err = tt.Insert(machine, 2, monday.Add(30*time.Minute), 30*time.Minute, 2, "")
	assert.True(t, models.IsReason(err, models.ReasonConflict))
}

func TestFindFreeSlotSkipsPastBusyWindow(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	// Busy 10:00-11:00; asking for 10:30 must land at 11:00.
	_, err := tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	start, err := tt.FindFreeSlot(machine, monday.Add(30*time.Minute), 30*time.Minute, 30)
	require.NoError(t, err)
	assert.Equal(t, monday.Add(time.Hour), start)
}

func TestFindFreeSlotRespectsOperatingWindow(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	// 16:45 + 30 min crosses the 17:00 boundary: next day 08:00.
	late := time.Date(2026, 1, 5, 16, 45, 0, 0, time.UTC)
	start, err := tt.FindFreeSlot(machine, late, 30*time.Minute, 30)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC), start)
}

func TestFindFreeSlotSkipsInactiveWeekdays(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()
	machine.ActiveWeekdays = "12345" // weekdays only

	saturday := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	start, err := tt.FindFreeSlot(machine, saturday, time.Hour, 30)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, time.Date(2026, 1, 12, 8, 0, 0, 0, time.UTC), start)
}

func TestFindFreeSlotExhaustsHorizon(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	// A duration no single operating window can hold.
	_, err := tt.FindFreeSlot(machine, monday, 12*time.Hour, 5)
	assert.True(t, models.IsReason(err, models.ReasonNoFreeSlot))
}

func TestCancelFreesTheWindow(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	slot, err := tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	_, err = tt.Cancel(slot.ID, "customer changed artwork")
	require.NoError(t, err)

	start, err := tt.FindFreeSlot(machine, monday, time.Hour, 30)
	require.NoError(t, err)
	assert.Equal(t, monday, start)
}

func TestSlotStateMachine(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()
	now := monday

	slot, err := tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	// scheduled → completed is forbidden
	_, err = tt.Complete(slot.ID, now)
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))

	started, err := tt.Start(slot.ID, "mira", now)
	require.NoError(t, err)
	assert.Equal(t, string(models.SlotStatusInProgress), started.Status)
	require.NotNil(t, started.ActualStart)

	// a second start must fail, not silently succeed
	_, err = tt.Start(slot.ID, "mira", now)
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))

	completed, err := tt.Complete(slot.ID, now.Add(50*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, string(models.SlotStatusCompleted), completed.Status)
	require.NotNil(t, completed.ActualEnd)

	// terminal states cannot be cancelled
	_, err = tt.Cancel(slot.ID, "")
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))
}

func TestAddPauseOnlyWhileRunning(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	slot, err := tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	_, err = tt.AddPause(slot.ID, 10)
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))

	_, err = tt.Start(slot.ID, "mira", monday)
	require.NoError(t, err)

	paused, err := tt.AddPause(slot.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, paused.PausedMinutes)

	paused, err = tt.AddPause(slot.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 15.0, paused.PausedMinutes)
}

func TestJobsBetweenSortedByStart(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	_, err := tt.Insert(machine, 2, monday.Add(2*time.Hour), time.Hour, 2, "")
	require.NoError(t, err)
	_, err = tt.Insert(machine, 1, monday, time.Hour, 2, "")
	require.NoError(t, err)

	slots, err := tt.JobsBetween(machine.ID, monday, monday.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, uint(1), slots[0].OrderID)
	assert.Equal(t, uint(2), slots[1].OrderID)
}

func TestNonOverlapInvariantAcrossInserts(t *testing.T) {
	tt := testTimetable(t)
	machine := allWeekMachine()

	// Pack the morning via Schedule and verify pairwise disjointness.
	for order := uint(1); order <= 5; order++ {
		_, err := tt.Schedule(machine, order, monday, 45*time.Minute, 2, 30, "")
		require.NoError(t, err)
	}

	slots, err := tt.JobsBetween(machine.ID, monday, monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, slots, 5)
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			disjoint := !slots[i].EndsAt.After(slots[j].StartsAt) ||
				!slots[j].EndsAt.After(slots[i].StartsAt)
			assert.True(t, disjoint, "slots %d and %d overlap", i, j)
		}
	}
}
