// Package throughput contains the physical production-time model. It is
// pure: the same machine and job always produce the same breakdown, and it
// is the fallback whenever recorded history is too thin to learn from.
package throughput

import (
	"math"

	"stitchadmin/internal/config"
	"stitchadmin/internal/models"
)

// Breakdown represents an explainable production-time estimate. All fields
// are minutes and never negative.
type Breakdown struct {
	StitchTimePerPiece float64 `json:"stitch_time_per_piece"`
	TotalStitchTime    float64 `json:"total_stitch_time"`
	SetupTime          float64 `json:"setup_time"`
	ThreadChangeTime   float64 `json:"thread_change_time"`
	HoopChangeTime     float64 `json:"hoop_change_time"`
	Buffer             float64 `json:"buffer"`
	TotalMinutes       float64 `json:"total_minutes"` // rounded to whole minutes
	Cycles             int     `json:"cycles"`
}

// Model computes breakdowns with a fixed set of tuning constants.
type Model struct {
	cfg config.Scheduling
}

// NewModel creates a throughput model with the given tuning constants.
func NewModel(cfg config.Scheduling) *Model {
	return &Model{cfg: cfg}
}

// EmbroideryBreakdown computes the time breakdown for an embroidery job.
// A multi-head machine stitches NumHeads pieces concurrently per cycle, so
// stitching scales with ceil(quantity/heads), not with quantity.
func (m *Model) EmbroideryBreakdown(machine *models.Machine, order *models.Order) Breakdown {
	heads := machine.NumHeads
	if heads < 1 {
		heads = 1
	}
	quantity := order.Quantity
	if quantity < 1 {
		quantity = 1
	}
	cycles := (quantity + heads - 1) / heads

	colors := len(order.ColorList())
	if colors < 1 {
		colors = 1
	}

	b := Breakdown{
		Cycles:           cycles,
		SetupTime:        machine.SetupMinutes,
		ThreadChangeTime: float64(colors) * machine.ThreadChangeMinutes,
	}

	if order.StitchCount > 0 && machine.MaxSpeed > 0 {
		sustained := machine.MaxSpeed * m.cfg.MaxSpeedEfficiencyFactor
		b.StitchTimePerPiece = float64(order.StitchCount) / sustained
		b.TotalStitchTime = b.StitchTimePerPiece * float64(cycles)
		b.HoopChangeTime = float64(cycles-1) * machine.HoopChangeMinutes
	}

	subtotal := b.TotalStitchTime + b.SetupTime + b.ThreadChangeTime + b.HoopChangeTime
	b.Buffer = m.cfg.BufferFraction * subtotal
	b.TotalMinutes = math.Round(subtotal + b.Buffer)
	return b
}

// PrintBreakdown computes the time breakdown for a DTF/DTG/vinyl/sublimation
// job: setup plus a per-piece constant scaled by quantity. Print jobs are not
// the learning target but share the breakdown shape for the planning view.
func (m *Model) PrintBreakdown(machine *models.Machine, order *models.Order) Breakdown {
	quantity := order.Quantity
	if quantity < 1 {
		quantity = 1
	}

	b := Breakdown{
		Cycles:    quantity,
		SetupTime: machine.SetupMinutes,
	}
	perPiece := printMinutesPerPiece(models.MachineType(machine.Type))
	b.TotalStitchTime = perPiece * float64(quantity)
	b.StitchTimePerPiece = perPiece

	subtotal := b.TotalStitchTime + b.SetupTime
	b.Buffer = m.cfg.BufferFraction * subtotal
	b.TotalMinutes = math.Round(subtotal + b.Buffer)
	return b
}

// printMinutesPerPiece returns the per-piece constant for a print process.
func printMinutesPerPiece(t models.MachineType) float64 {
	switch t {
	case models.MachineTypeDTF:
		return 2.5
	case models.MachineTypeDTG:
		return 4.0
	case models.MachineTypeVinyl:
		return 6.0
	case models.MachineTypeSublimation:
		return 3.0
	default:
		return 3.0
	}
}
