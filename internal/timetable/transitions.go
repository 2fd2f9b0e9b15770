package timetable

import (
	"time"

	"stitchadmin/internal/models"
)

// Start transitions a slot from scheduled to in_progress and records the
// actual start instant.
func (t *Timetable) Start(slotID uint, operator string, now time.Time) (*models.TimetableSlot, error) {
	slot, err := t.SlotByID(slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != string(models.SlotStatusScheduled) {
		return nil, models.NewError(models.ReasonWrongStatus,
			"slot %d is %s, only scheduled slots can start", slotID, slot.Status)
	}

	slot.Status = string(models.SlotStatusInProgress)
	slot.ActualStart = &now
	slot.Operator = operator
	if err := t.db.Save(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

// Complete transitions a slot from in_progress to completed and records the
// actual end instant. Going from scheduled straight to completed is not a
// legal transition.
func (t *Timetable) Complete(slotID uint, now time.Time) (*models.TimetableSlot, error) {
	slot, err := t.SlotByID(slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != string(models.SlotStatusInProgress) {
		return nil, models.NewError(models.ReasonWrongStatus,
			"slot %d is %s, only running slots can complete", slotID, slot.Status)
	}
	if slot.ActualStart == nil {
		return nil, models.NewError(models.ReasonInvariantViolation,
			"slot %d is running without an actual start", slotID)
	}

	slot.Status = string(models.SlotStatusCompleted)
	slot.ActualEnd = &now
	if err := t.db.Save(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

// Cancel marks a scheduled or running slot cancelled, freeing its machine
// time. The row is retained for audit.
func (t *Timetable) Cancel(slotID uint, reason string) (*models.TimetableSlot, error) {
	slot, err := t.SlotByID(slotID)
	if err != nil {
		return nil, err
	}
	if !slot.Active() {
		return nil, models.NewError(models.ReasonWrongStatus,
			"slot %d is %s and cannot be cancelled", slotID, slot.Status)
	}

	slot.Status = string(models.SlotStatusCancelled)
	if reason != "" {
		slot.Metadata = reason
	}
	if err := t.db.Save(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}

// AddPause records interrupted minutes on a running slot. Pauses reduce the
// effective duration written to history on completion.
func (t *Timetable) AddPause(slotID uint, minutes float64) (*models.TimetableSlot, error) {
	if minutes <= 0 {
		return nil, models.NewError(models.ReasonInvariantViolation,
			"pause minutes must be positive, got %v", minutes)
	}
	slot, err := t.SlotByID(slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != string(models.SlotStatusInProgress) {
		return nil, models.NewError(models.ReasonWrongStatus,
			"slot %d is %s, pauses only apply to running slots", slotID, slot.Status)
	}

	slot.PausedMinutes += minutes
	if err := t.db.Save(slot).Error; err != nil {
		return nil, err
	}
	return slot, nil
}
