// Package history is the append-only log of completed production runs and
// the feature queries the estimator retrieves against.
package history

import (
	"math"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"

	"stitchadmin/internal/models"
)

// Store persists history entries in the relational store. Entries are
// immutable once appended.
type Store struct {
	db *gorm.DB
}

// NewStore creates a history store on the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Filter narrows a history query. Zero values mean "no restriction".
type Filter struct {
	WorkType   string
	Position   string
	FabricType string
	MachineID  uint

	// Stitch band, inclusive. Applied only when StitchMax > 0. Entries with
	// an unknown stitch count never match a stitch-banded query.
	StitchMin int
	StitchMax int

	// Limit caps the result set; 0 falls back to DefaultLimit.
	Limit int
}

// DefaultLimit bounds history queries when the caller does not.
const DefaultLimit = 50

// Append persists a new entry. The derived effective duration is computed
// here so every reader sees the same value. The write is a single INSERT:
// concurrent readers see either the whole entry or nothing.
func (s *Store) Append(entry *models.HistoryEntry) error {
	if entry.EndedAt.Before(entry.StartedAt) {
		return models.NewError(models.ReasonInvariantViolation,
			"history entry ends before it starts (order %d)", entry.OrderID)
	}
	if entry.QuantityProduced < 0 {
		return models.NewError(models.ReasonInvariantViolation,
			"negative quantity produced (order %d)", entry.OrderID)
	}
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	effective := entry.EndedAt.Sub(entry.StartedAt).Minutes() - entry.PausedMinutes
	if effective < 0 {
		effective = 0
	}
	entry.EffectiveMinutes = effective

	if err := s.db.Create(entry).Error; err != nil {
		return err
	}
	return nil
}

// Query returns entries matching all supplied filters, newest first.
func (s *Store) Query(f Filter) ([]models.HistoryEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := s.db.Model(&models.HistoryEntry{})
	if f.WorkType != "" {
		q = q.Where("work_type = ?", f.WorkType)
	}
	if f.Position != "" {
		q = q.Where("position = ?", f.Position)
	}
	if f.FabricType != "" {
		q = q.Where("fabric_type = ?", f.FabricType)
	}
	if f.MachineID != 0 {
		q = q.Where("machine_id = ?", f.MachineID)
	}
	if f.StitchMax > 0 {
		q = q.Where("stitch_count IS NOT NULL AND stitch_count BETWEEN ? AND ?",
			f.StitchMin, f.StitchMax)
	}

	var entries []models.HistoryEntry
	if err := q.Order("created_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// EntriesForOrder returns the runs recorded for one order, newest first.
func (s *Store) EntriesForOrder(orderID uint) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := s.db.Where("order_id = ?", orderID).
		Order("created_at desc").Limit(DefaultLimit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Aggregate represents summary statistics over a group of entries. Entries
// without the data needed for a metric are excluded from that metric rather
// than counted as zero.
type Aggregate struct {
	Group string `json:"group"`
	Count int    `json:"count"`

	MeanDuration   float64 `json:"mean_duration_minutes"`
	StdDevDuration float64 `json:"stddev_duration_minutes"`

	MeanTimePerPiece      float64 `json:"mean_time_per_piece"`
	StdDevTimePerPiece    float64 `json:"stddev_time_per_piece"`
	MeanStitchesPerMinute float64 `json:"mean_stitches_per_minute"`
}

// AggregateBy groups matching entries by the given feature column
// ("position", "fabric_type" or "work_type") and summarizes each group.
func (s *Store) AggregateBy(groupBy string, f Filter) ([]Aggregate, error) {
	f.Limit = maxAggregateRows
	entries, err := s.Query(f)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.HistoryEntry)
	for _, e := range entries {
		var key string
		switch groupBy {
		case "position":
			key = e.Position
		case "fabric_type":
			key = e.FabricType
		default:
			key = e.WorkType
		}
		groups[key] = append(groups[key], e)
	}

	aggregates := make([]Aggregate, 0, len(groups))
	for key, group := range groups {
		aggregates = append(aggregates, summarize(key, group))
	}
	return aggregates, nil
}

// maxAggregateRows bounds aggregation scans; aggregates feed dashboards,
// not scheduling decisions.
const maxAggregateRows = 500

func summarize(key string, entries []models.HistoryEntry) Aggregate {
	agg := Aggregate{Group: key, Count: len(entries)}

	durations := make([]float64, 0, len(entries))
	perPiece := make([]float64, 0, len(entries))
	spm := make([]float64, 0, len(entries))
	for _, e := range entries {
		durations = append(durations, e.EffectiveMinutes)
		if tpp, ok := e.TimePerPiece(); ok {
			perPiece = append(perPiece, tpp)
		}
		if rate, ok := e.StitchesPerMinute(); ok {
			spm = append(spm, rate)
		}
	}

	agg.MeanDuration, agg.StdDevDuration = meanStdDev(durations)
	agg.MeanTimePerPiece, agg.StdDevTimePerPiece = meanStdDev(perPiece)
	agg.MeanStitchesPerMinute, _ = meanStdDev(spm)
	return agg
}

func meanStdDev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
