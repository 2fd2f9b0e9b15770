// Package estimator produces production-time estimates. It prefers learned
// estimates retrieved from completed-run history and falls back to the
// physical throughput model while history is thin.
package estimator

import (
	"fmt"
	"math"

	"stitchadmin/internal/config"
	"stitchadmin/internal/history"
	"stitchadmin/internal/models"
	"stitchadmin/internal/throughput"
)

// Confidence labels how many historical samples supported an estimate.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Estimate represents a duration estimate for a prospective job.
type Estimate struct {
	Minutes     float64              `json:"minutes"`
	Confidence  string               `json:"confidence"`
	SampleCount int                  `json:"sample_count"`
	Explanation string               `json:"explanation"`
	Breakdown   throughput.Breakdown `json:"breakdown"`
}

// Estimator retrieves comparable runs from history and weighs them against
// the physical model.
type Estimator struct {
	cfg   config.Scheduling
	model *throughput.Model
	store *history.Store
}

// New creates an estimator.
func New(cfg config.Scheduling, model *throughput.Model, store *history.Store) *Estimator {
	return &Estimator{cfg: cfg, model: model, store: store}
}

// Estimate returns the duration estimate for running the order on the
// machine. It never fails: any retrieval problem degrades to the physical
// baseline with low confidence.
func (e *Estimator) Estimate(order *models.Order, machine *models.Machine) Estimate {
	switch order.ProductionType {
	case models.ProductionTypePrinting:
		return e.estimatePrint(order, machine)
	default:
		return e.estimateEmbroidery(order, machine)
	}
}

func (e *Estimator) estimateEmbroidery(order *models.Order, machine *models.Machine) Estimate {
	baseline := e.model.EmbroideryBreakdown(machine, order)

	band := float64(order.StitchCount) * e.cfg.StitchRangeFraction
	entries, err := e.store.Query(history.Filter{
		WorkType:   models.WorkTypeEmbroideryRun,
		Position:   order.Position,
		FabricType: order.FabricType,
		StitchMin:  int(float64(order.StitchCount) - band),
		StitchMax:  int(float64(order.StitchCount) + band),
		Limit:      e.cfg.HistorySampleCap,
	})
	if err != nil {
		return e.baseline(baseline, 0, "history unavailable, physical model used")
	}

	samples := usableSamples(entries)
	if len(samples) < e.cfg.ConfidenceMedium {
		explanation := "no history, physical model used"
		if len(samples) > 0 {
			explanation = fmt.Sprintf("only %d comparable runs, physical model used", len(samples))
		}
		return e.baseline(baseline, len(samples), explanation)
	}

	perPiece := e.weightedTimePerPiece(samples, order)
	minutes := perPiece * float64(order.Quantity) * e.cfg.LearningFactor

	return Estimate{
		Minutes:     math.Round(minutes),
		Confidence:  e.confidence(len(samples)),
		SampleCount: len(samples),
		Explanation: fmt.Sprintf("learned from %d comparable runs", len(samples)),
		Breakdown:   baseline,
	}
}

func (e *Estimator) estimatePrint(order *models.Order, machine *models.Machine) Estimate {
	baseline := e.model.PrintBreakdown(machine, order)

	entries, err := e.store.Query(history.Filter{
		WorkType: models.WorkTypePrintRun,
		Limit:    e.cfg.HistorySampleCap,
	})
	if err != nil {
		return e.baseline(baseline, 0, "history unavailable, physical model used")
	}

	samples := usableSamples(entries)
	if len(samples) < e.cfg.ConfidenceMedium {
		return e.baseline(baseline, len(samples), "insufficient print history, physical model used")
	}

	// Nearest runs by print area and quantity.
	area := order.PrintAreaCM2()
	nearest := nearestByScore(samples, 5, func(s sample) float64 {
		entryArea := 0.0
		if s.entry.AreaCM2 != nil {
			entryArea = *s.entry.AreaCM2
		}
		return math.Abs(entryArea-area)/100 + math.Abs(float64(s.entry.QuantityProduced-order.Quantity))*5
	})

	perPiece := weightedMean(nearest)
	minutes := perPiece * float64(order.Quantity) * e.cfg.LearningFactor

	return Estimate{
		Minutes:     math.Round(minutes),
		Confidence:  e.confidence(len(samples)),
		SampleCount: len(samples),
		Explanation: fmt.Sprintf("learned from %d comparable print runs", len(samples)),
		Breakdown:   baseline,
	}
}

// weightedTimePerPiece keeps the five most similar runs and averages their
// per-piece times with weights 1/(1+score). Similarity is a weighted
// Manhattan distance over stitch count and quantity.
func (e *Estimator) weightedTimePerPiece(samples []sample, order *models.Order) float64 {
	nearest := nearestByScore(samples, 5, func(s sample) float64 {
		score := math.Abs(float64(s.entry.QuantityProduced-order.Quantity)) * 10
		if s.entry.StitchCount != nil {
			score += math.Abs(float64(*s.entry.StitchCount-order.StitchCount)) / 1000
		}
		return score
	})
	return weightedMean(nearest)
}

func (e *Estimator) baseline(b throughput.Breakdown, sampleCount int, explanation string) Estimate {
	return Estimate{
		Minutes:     b.TotalMinutes,
		Confidence:  ConfidenceLow,
		SampleCount: sampleCount,
		Explanation: explanation,
		Breakdown:   b,
	}
}

func (e *Estimator) confidence(sampleCount int) string {
	switch {
	case sampleCount >= e.cfg.ConfidenceHigh:
		return ConfidenceHigh
	case sampleCount >= e.cfg.ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// sample pairs a history entry with its per-piece duration.
type sample struct {
	entry        models.HistoryEntry
	timePerPiece float64
	score        float64
}

// usableSamples drops entries that produced nothing; their per-piece time
// is undefined, not zero.
func usableSamples(entries []models.HistoryEntry) []sample {
	samples := make([]sample, 0, len(entries))
	for _, e := range entries {
		tpp, ok := e.TimePerPiece()
		if !ok {
			continue
		}
		samples = append(samples, sample{entry: e, timePerPiece: tpp})
	}
	return samples
}

// nearestByScore scores every sample and returns the k lowest-scoring ones.
func nearestByScore(samples []sample, k int, score func(sample) float64) []sample {
	scored := make([]sample, len(samples))
	copy(scored, samples)
	for i := range scored {
		scored[i].score = score(scored[i])
	}
	// insertion sort: sample sets are capped at the history query limit
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].score < scored[j-1].score; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// weightedMean averages per-piece times with weights 1/(1+score).
func weightedMean(samples []sample) float64 {
	var weighted, weights float64
	for _, s := range samples {
		w := 1 / (1 + s.score)
		weighted += s.timePerPiece * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}
