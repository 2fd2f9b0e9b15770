package history

import (
	"time"

	"stitchadmin/internal/models"
)

// minPositionSamples is the sample count below which a position aggregate
// is not refreshed; sparse positions keep serving the physical model.
const minPositionSamples = 5

// PositionStats returns the stored aggregate for a position, or ok=false
// when none has been built yet. The aggregate backs UI tooltips; scheduling
// always goes through the estimator.
func (s *Store) PositionStats(position string) (*models.PositionStats, bool) {
	var stats models.PositionStats
	if s.db.Where("position = ?", position).First(&stats).RecordNotFound() {
		return nil, false
	}
	return &stats, true
}

// RefreshPosition rebuilds the aggregate for one position from embroidery
// history. Positions with fewer than minPositionSamples usable samples are
// left untouched.
func (s *Store) RefreshPosition(position string) error {
	entries, err := s.Query(Filter{
		WorkType: models.WorkTypeEmbroideryRun,
		Position: position,
		Limit:    maxAggregateRows,
	})
	if err != nil {
		return err
	}

	perPiece := make([]float64, 0, len(entries))
	stitches := make([]float64, 0, len(entries))
	complexities := make([]float64, 0, len(entries))
	for _, e := range entries {
		tpp, ok := e.TimePerPiece()
		if !ok {
			continue
		}
		perPiece = append(perPiece, tpp)
		if e.StitchCount != nil {
			stitches = append(stitches, float64(*e.StitchCount))
		}
		if e.Complexity > 0 {
			complexities = append(complexities, float64(e.Complexity))
		}
	}
	if len(perPiece) < minPositionSamples {
		return nil
	}

	meanPerPiece, _ := meanStdDev(perPiece)
	meanStitches, _ := meanStdDev(stitches)
	meanComplexity, _ := meanStdDev(complexities)
	if meanComplexity == 0 {
		meanComplexity = 3 // middle of the 1..5 scale
	}

	stats := models.PositionStats{
		Position:             position,
		TimePerPiece:         meanPerPiece,
		TypicalStitchCount:   int(meanStitches),
		ComplexityMultiplier: meanComplexity / 3.0,
		SampleCount:          len(perPiece),
		RefreshedAt:          time.Now(),
	}

	var existing models.PositionStats
	if s.db.Where("position = ?", position).First(&existing).RecordNotFound() {
		return s.db.Create(&stats).Error
	}
	stats.Model = existing.Model
	stats.SetupTime = existing.SetupTime
	return s.db.Save(&stats).Error
}
