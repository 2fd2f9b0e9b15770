package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// HistoryEntry represents one completed production run. Entries are
// append-only: the scheduler writes them on completion and nothing in the
// core mutates or deletes them afterwards.
type HistoryEntry struct {
	gorm.Model
	EntryID  string // audit reference, UUID
	OrderID  uint
	WorkType string

	QuantityPlanned  int
	QuantityProduced int
	QuantityRejected int

	// StitchCount is nil for runs where the value is unknown (print jobs,
	// unrefined completions); unknown values are excluded from aggregates.
	StitchCount  *int
	AreaCM2      *float64 // print runs only
	ColorChanges int
	Position     string
	FabricType   string
	Complexity   int
	NewDesign    bool

	MachineID     uint
	StartedAt     time.Time
	EndedAt       time.Time
	PausedMinutes float64

	// EffectiveMinutes = (EndedAt − StartedAt) − PausedMinutes, never negative.
	EffectiveMinutes float64

	Issues string
}

// Work types recorded in history
const (
	WorkTypeEmbroideryRun = "embroidery_run"
	WorkTypePrintRun      = "print_run"
)

// TimePerPiece returns the per-piece effective duration and whether the
// entry carries enough data to compute it.
func (h *HistoryEntry) TimePerPiece() (float64, bool) {
	if h.QuantityProduced <= 0 {
		return 0, false
	}
	return h.EffectiveMinutes / float64(h.QuantityProduced), true
}

// StitchesPerMinute returns the observed stitch rate and whether the entry
// carries enough data to compute it.
func (h *HistoryEntry) StitchesPerMinute() (float64, bool) {
	if h.StitchCount == nil || h.EffectiveMinutes <= 0 || h.QuantityProduced <= 0 {
		return 0, false
	}
	total := float64(*h.StitchCount) * float64(h.QuantityProduced)
	return total / h.EffectiveMinutes, true
}

// PositionStats represents the per-position aggregate shortcut refreshed
// from history. Authoritative for UI tooltips only; the estimator remains
// authoritative for scheduling.
type PositionStats struct {
	gorm.Model
	Position             string
	SetupTime            float64
	TimePerPiece         float64
	TypicalStitchCount   int
	ComplexityMultiplier float64
	SampleCount          int
	RefreshedAt          time.Time
}
