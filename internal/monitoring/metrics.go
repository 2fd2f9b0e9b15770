package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector handles metrics collection and reporting for the
// scheduling core.
type MetricsCollector struct {
	registry *prometheus.Registry

	assignments    *prometheus.CounterVec
	estimates      *prometheus.CounterVec
	estimateTime   *prometheus.HistogramVec
	slotConflicts  prometheus.Counter
	historyEntries prometheus.Counter
}

// NewMetricsCollector creates a new metrics collector on a private registry.
func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()

	assignments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_assignments_total",
			Help: "Assignment attempts by machine type and result",
		},
		[]string{"machine_type", "result"},
	)

	estimates := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_estimates_total",
			Help: "Estimates served by work type and confidence",
		},
		[]string{"work_type", "confidence"},
	)

	estimateTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estimator_minutes",
			Help:    "Estimated production minutes",
			Buckets: prometheus.LinearBuckets(0, 30, 16), // 30-minute buckets up to a full shift
		},
		[]string{"work_type"},
	)

	slotConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timetable_conflicts_total",
			Help: "Slot insertions rejected for overlap",
		},
	)

	historyEntries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "history_entries_total",
			Help: "Completed runs appended to history",
		},
	)

	registry.MustRegister(assignments, estimates, estimateTime, slotConflicts, historyEntries)

	return &MetricsCollector{
		registry:       registry,
		assignments:    assignments,
		estimates:      estimates,
		estimateTime:   estimateTime,
		slotConflicts:  slotConflicts,
		historyEntries: historyEntries,
	}
}

// Registry returns the prometheus registry for the metrics HTTP handler.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordAssignment records an assignment attempt and its result.
func (mc *MetricsCollector) RecordAssignment(machineType, result string) {
	mc.assignments.WithLabelValues(machineType, result).Inc()
}

// RecordEstimate records a served estimate.
func (mc *MetricsCollector) RecordEstimate(workType, confidence string, minutes float64) {
	mc.estimates.WithLabelValues(workType, confidence).Inc()
	mc.estimateTime.WithLabelValues(workType).Observe(minutes)
}

// RecordConflict records a rejected slot insertion.
func (mc *MetricsCollector) RecordConflict() {
	mc.slotConflicts.Inc()
}

// RecordHistoryEntry records a new completed-run entry.
func (mc *MetricsCollector) RecordHistoryEntry() {
	mc.historyEntries.Inc()
}
