package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// TimetableSlot represents a scheduled block of machine time for one order.
// Non-cancelled slots on the same machine never overlap.
type TimetableSlot struct {
	gorm.Model
	MachineID       uint
	OrderID         uint
	StartsAt        time.Time
	EndsAt          time.Time
	DurationMinutes float64
	Priority        int // numeric priority at insertion time
	Status          string

	ActualStart   *time.Time
	ActualEnd     *time.Time
	PausedMinutes float64
	Operator      string
	Metadata      string
}

// SlotStatus represents the lifecycle state of a timetable slot
type SlotStatus string

const (
	SlotStatusScheduled  SlotStatus = "scheduled"
	SlotStatusInProgress SlotStatus = "in_progress"
	SlotStatusCompleted  SlotStatus = "completed"
	SlotStatusCancelled  SlotStatus = "cancelled"
)

// Active reports whether the slot still occupies machine time.
func (s *TimetableSlot) Active() bool {
	return s.Status == string(SlotStatusScheduled) || s.Status == string(SlotStatusInProgress)
}

// Overlaps reports whether [start, end) intersects the slot's window.
func (s *TimetableSlot) Overlaps(start, end time.Time) bool {
	return s.StartsAt.Before(end) && start.Before(s.EndsAt)
}

// Assignment represents a committed order-to-machine binding returned by
// the scheduler. It is transient: the durable record is the slot itself.
type Assignment struct {
	OrderID          uint      `json:"order_id"`
	MachineID        uint      `json:"machine_id"`
	SlotID           uint      `json:"slot_id"`
	EstimatedStart   time.Time `json:"estimated_start"`
	EstimatedMinutes float64   `json:"estimated_minutes"`
	Confidence       string    `json:"confidence"`
	SampleCount      int       `json:"sample_count"`
}
