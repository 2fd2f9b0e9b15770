// Package timetable maintains the per-machine production schedule. Its one
// hard invariant: non-cancelled slots on the same machine never overlap.
package timetable

import (
	"sync"
	"time"

	"github.com/jinzhu/gorm"

	"stitchadmin/internal/models"
)

// Timetable persists slots in the relational store and serializes the
// find-then-insert pair per machine. Different machines schedule
// concurrently; only the same machine is a critical section.
type Timetable struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New creates a timetable on the given database.
func New(db *gorm.DB) *Timetable {
	return &Timetable{db: db, locks: make(map[uint]*sync.Mutex)}
}

func (t *Timetable) machineLock(machineID uint) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[machineID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[machineID] = lock
	}
	return lock
}

// Insert places a slot at exactly the requested start. It fails with
// Conflict when the window overlaps any non-cancelled slot on the machine.
func (t *Timetable) Insert(machine *models.Machine, orderID uint, start time.Time, duration time.Duration, priority int, metadata string) (*models.TimetableSlot, error) {
	lock := t.machineLock(machine.ID)
	lock.Lock()
	defer lock.Unlock()
	return t.insertLocked(machine, orderID, start, duration, priority, metadata)
}

func (t *Timetable) insertLocked(machine *models.Machine, orderID uint, start time.Time, duration time.Duration, priority int, metadata string) (*models.TimetableSlot, error) {
	if duration <= 0 {
		return nil, models.NewError(models.ReasonInvariantViolation,
			"slot duration must be positive, got %s", duration)
	}
	end := start.Add(duration)

	var count int
	err := t.db.Model(&models.TimetableSlot{}).
		Where("machine_id = ? AND status IN (?, ?) AND starts_at < ? AND ends_at > ?",
			machine.ID, models.SlotStatusScheduled, models.SlotStatusInProgress, end, start).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, models.NewError(models.ReasonConflict,
			"machine %d already has a slot overlapping [%s, %s)",
			machine.ID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	slot := &models.TimetableSlot{
		MachineID:       machine.ID,
		OrderID:         orderID,
		StartsAt:        start,
		EndsAt:          end,
		DurationMinutes: duration.Minutes(),
		Priority:        priority,
		Status:          string(models.SlotStatusScheduled),
		Metadata:        metadata,
	}
	if err := t.db.Create(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

// Schedule finds the earliest feasible start at or after earliest and
// inserts a slot there, as one critical section. This is the path the
// scheduler commits assignments through.
func (t *Timetable) Schedule(machine *models.Machine, orderID uint, earliest time.Time, duration time.Duration, priority int, horizonDays int, metadata string) (*models.TimetableSlot, error) {
	lock := t.machineLock(machine.ID)
	lock.Lock()
	defer lock.Unlock()

	start, err := t.FindFreeSlot(machine, earliest, duration, horizonDays)
	if err != nil {
		return nil, err
	}
	return t.insertLocked(machine, orderID, start, duration, priority, metadata)
}

// FindFreeSlot returns the earliest instant at or after earliest where the
// whole duration fits inside the machine's operating window on an active
// weekday without touching another non-cancelled slot. The search stops
// after horizonDays with NoFreeSlot. Durations that cannot fit inside any
// single operating window also yield NoFreeSlot; the caller must split the
// job before asking again.
func (t *Timetable) FindFreeSlot(machine *models.Machine, earliest time.Time, duration time.Duration, horizonDays int) (time.Time, error) {
	if duration <= 0 {
		return time.Time{}, models.NewError(models.ReasonInvariantViolation,
			"slot duration must be positive, got %s", duration)
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}

	var slots []models.TimetableSlot
	err := t.db.
		Where("machine_id = ? AND status IN (?, ?) AND ends_at > ?",
			machine.ID, models.SlotStatusScheduled, models.SlotStatusInProgress, earliest).
		Order("starts_at").
		Find(&slots).Error
	if err != nil {
		return time.Time{}, err
	}

	for day := 0; day <= horizonDays; day++ {
		date := earliest.AddDate(0, 0, day)
		windowStart, windowEnd, ok := machine.WindowOn(date)
		if !ok {
			continue
		}

		candidate := windowStart
		if day == 0 && earliest.After(candidate) {
			candidate = earliest
		}

		for !candidate.Add(duration).After(windowEnd) {
			blocked := false
			for _, slot := range slots {
				if slot.Overlaps(candidate, candidate.Add(duration)) {
					candidate = slot.EndsAt
					blocked = true
					break
				}
			}
			if !blocked {
				return candidate, nil
			}
		}
	}

	return time.Time{}, models.NewError(models.ReasonNoFreeSlot,
		"no free %s slot on machine %d within %d days of %s",
		duration, machine.ID, horizonDays, earliest.Format(time.RFC3339))
}

// JobsBetween returns the machine's slots overlapping [t0, t1), sorted by
// start. Cancelled slots are included; they are part of the audit trail.
func (t *Timetable) JobsBetween(machineID uint, t0, t1 time.Time) ([]models.TimetableSlot, error) {
	var slots []models.TimetableSlot
	err := t.db.
		Where("machine_id = ? AND starts_at < ? AND ends_at > ?", machineID, t1, t0).
		Order("starts_at").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// SlotByID returns one slot by identity.
func (t *Timetable) SlotByID(slotID uint) (*models.TimetableSlot, error) {
	var slot models.TimetableSlot
	result := t.db.First(&slot, slotID)
	if result.RecordNotFound() {
		return nil, models.NewError(models.ReasonNotFound, "slot %d does not exist", slotID)
	}
	return &slot, result.Error
}

// ActiveSlotForOrder returns the order's scheduled or running slot, or
// ok=false when the order is unassigned.
func (t *Timetable) ActiveSlotForOrder(orderID uint) (*models.TimetableSlot, bool) {
	var slot models.TimetableSlot
	notFound := t.db.
		Where("order_id = ? AND status IN (?, ?)",
			orderID, models.SlotStatusScheduled, models.SlotStatusInProgress).
		First(&slot).RecordNotFound()
	if notFound {
		return nil, false
	}
	return &slot, true
}
