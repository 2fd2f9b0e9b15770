// Package scheduler binds production-ready orders to machine slots and
// feeds completed runs back into history, closing the learning loop.
package scheduler

import (
	"fmt"
	"log"
	"time"

	"stitchadmin/internal/clock"
	"stitchadmin/internal/config"
	"stitchadmin/internal/estimator"
	"stitchadmin/internal/history"
	"stitchadmin/internal/models"
	"stitchadmin/internal/monitoring"
	"stitchadmin/internal/timetable"
)

// MachineRegistry is the scheduler's read view of the machine park.
type MachineRegistry interface {
	ByID(id uint) (*models.Machine, error)
	ListByStatus(status models.MachineStatus) ([]models.Machine, error)
}

// OrderRegistry is the scheduler's view of orders: reads plus the status
// transitions it is allowed to make.
type OrderRegistry interface {
	ByID(id uint) (*models.Order, error)
	Schedulable() ([]models.Order, error)
	SetStatus(id uint, status models.OrderStatus) error
}

// Inventory reports stock levels for required thread colors.
type Inventory interface {
	StockFor(colors []string) ([]models.ThreadStock, error)
}

// Notifier receives schedule change events, e.g. for the planning board.
type Notifier interface {
	Publish(event string, payload interface{})
}

// Scheduler orchestrates estimation, slot search and the order state
// transitions around production.
type Scheduler struct {
	cfg       config.Scheduling
	machines  MachineRegistry
	orders    OrderRegistry
	inventory Inventory
	estimator *estimator.Estimator
	timetable *timetable.Timetable
	histStore *history.Store
	clock     clock.Clock
	metrics   *monitoring.MetricsCollector
	notifier  Notifier
}

// New creates a scheduler. metrics and notifier may be nil.
func New(
	cfg config.Scheduling,
	machines MachineRegistry,
	orders OrderRegistry,
	inventory Inventory,
	est *estimator.Estimator,
	tt *timetable.Timetable,
	histStore *history.Store,
	clk clock.Clock,
	metrics *monitoring.MetricsCollector,
	notifier Notifier,
) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		machines:  machines,
		orders:    orders,
		inventory: inventory,
		estimator: est,
		timetable: tt,
		histStore: histStore,
		clock:     clk,
		metrics:   metrics,
		notifier:  notifier,
	}
}

// Assign schedules an order on a machine at the earliest feasible start at
// or after requestedStart and returns the committed assignment.
func (s *Scheduler) Assign(orderID, machineID uint, requestedStart time.Time) (*models.Assignment, error) {
	order, err := s.orders.ByID(orderID)
	if err != nil {
		return nil, err
	}
	machine, err := s.machines.ByID(machineID)
	if err != nil {
		return nil, err
	}

	if err := s.validateAssignment(order, machine); err != nil {
		s.recordAssignment(machine.Type, err)
		return nil, err
	}

	est := s.estimator.Estimate(order, machine)
	duration := time.Duration(est.Minutes) * time.Minute
	if duration <= 0 {
		duration = time.Minute
	}

	slot, err := s.timetable.Schedule(machine, order.ID, requestedStart, duration,
		config.RankOf(order.Priority), s.cfg.SearchHorizonDays, "")
	if err != nil {
		s.recordAssignment(machine.Type, err)
		return nil, err
	}

	assignment := &models.Assignment{
		OrderID:          order.ID,
		MachineID:        machine.ID,
		SlotID:           slot.ID,
		EstimatedStart:   slot.StartsAt,
		EstimatedMinutes: est.Minutes,
		Confidence:       est.Confidence,
		SampleCount:      est.SampleCount,
	}

	s.recordAssignment(machine.Type, nil)
	s.publish("assignment_committed", assignment)
	log.Printf("assigned order %d to machine %d at %s (%v min, %s confidence)",
		order.ID, machine.ID, slot.StartsAt.Format(time.RFC3339), est.Minutes, est.Confidence)
	return assignment, nil
}

func (s *Scheduler) validateAssignment(order *models.Order, machine *models.Machine) error {
	if !order.Schedulable() {
		return models.NewError(models.ReasonWrongStatus,
			"order %d is %s and cannot be scheduled", order.ID, order.Status)
	}
	if slot, assigned := s.timetable.ActiveSlotForOrder(order.ID); assigned {
		return models.NewError(models.ReasonAlreadyAssigned,
			"order %d already holds slot %d", order.ID, slot.ID)
	}
	if !machine.CanProduce(order.ProductionType) {
		return models.NewError(models.ReasonIncompatible,
			"machine %d (%s) cannot run %s orders", machine.ID, machine.Type, order.ProductionType)
	}
	if machine.Status != string(models.MachineStatusActive) {
		return models.NewError(models.ReasonMachineUnavailable,
			"machine %d is %s", machine.ID, machine.Status)
	}
	return nil
}

// Start marks a slot's production as running: the slot moves to
// in_progress and the order to in_progress.
func (s *Scheduler) Start(slotID uint, operator string) (*models.TimetableSlot, error) {
	now := s.clock.Now()
	slot, err := s.timetable.Start(slotID, operator, now)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.ByID(slot.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == string(models.OrderStatusAccepted) {
		if err := s.orders.SetStatus(order.ID, models.OrderStatusInProgress); err != nil {
			return nil, err
		}
	}

	s.publish("slot_started", slot)
	return slot, nil
}

// Observed carries the operator-reported facts of a finished run.
type Observed struct {
	QuantityProduced int      `json:"quantity_produced"`
	QuantityRejected int      `json:"quantity_rejected"`
	StitchCount      *int     `json:"stitch_count,omitempty"`
	AreaCM2          *float64 `json:"area_cm2,omitempty"`
	ColorChanges     int      `json:"color_changes"`
	FabricType       string   `json:"fabric_type"`
	Complexity       int      `json:"complexity"`
	Issues           string   `json:"issues"`
}

// Complete finishes a running slot, moves the order to ready and appends
// the run to history. This is the only path that writes history; every
// future estimate for similar work observes the entry.
func (s *Scheduler) Complete(slotID uint, operator string, observed Observed) (*models.HistoryEntry, error) {
	now := s.clock.Now()
	slot, err := s.timetable.Complete(slotID, now)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.ByID(slot.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetStatus(order.ID, models.OrderStatusReady); err != nil {
		return nil, err
	}

	entry := s.buildHistoryEntry(slot, order, observed, now)
	if err := s.histStore.Append(entry); err != nil {
		return nil, fmt.Errorf("slot %d completed but history append failed: %w", slotID, err)
	}
	if entry.Position != "" {
		if err := s.histStore.RefreshPosition(entry.Position); err != nil {
			log.Printf("position aggregate refresh failed for %q: %v", entry.Position, err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordHistoryEntry()
	}
	s.publish("slot_completed", slot)
	log.Printf("completed slot %d (order %d): %d produced, %.1f effective minutes",
		slot.ID, order.ID, entry.QuantityProduced, entry.EffectiveMinutes)
	return entry, nil
}

func (s *Scheduler) buildHistoryEntry(slot *models.TimetableSlot, order *models.Order, observed Observed, now time.Time) *models.HistoryEntry {
	workType := models.WorkTypeEmbroideryRun
	if order.ProductionType == models.ProductionTypePrinting {
		workType = models.WorkTypePrintRun
	}

	stitchCount := observed.StitchCount
	if stitchCount == nil && order.StitchCount > 0 && workType == models.WorkTypeEmbroideryRun {
		count := order.StitchCount
		stitchCount = &count
	}
	areaCM2 := observed.AreaCM2
	if areaCM2 == nil && workType == models.WorkTypePrintRun {
		if area := order.PrintAreaCM2(); area > 0 {
			areaCM2 = &area
		}
	}
	colorChanges := observed.ColorChanges
	if colorChanges == 0 {
		colorChanges = len(order.ColorList())
	}
	fabric := observed.FabricType
	if fabric == "" {
		fabric = order.FabricType
	}
	complexity := observed.Complexity
	if complexity == 0 {
		complexity = order.Complexity
	}

	return &models.HistoryEntry{
		OrderID:          order.ID,
		WorkType:         workType,
		QuantityPlanned:  order.Quantity,
		QuantityProduced: observed.QuantityProduced,
		QuantityRejected: observed.QuantityRejected,
		StitchCount:      stitchCount,
		AreaCM2:          areaCM2,
		ColorChanges:     colorChanges,
		Position:         order.Position,
		FabricType:       fabric,
		Complexity:       complexity,
		NewDesign:        order.NewDesign,
		MachineID:        slot.MachineID,
		StartedAt:        *slot.ActualStart,
		EndedAt:          now,
		PausedMinutes:    slot.PausedMinutes,
		Issues:           observed.Issues,
	}
}

// Cancel cancels a scheduled or running slot. An order whose production had
// already started reverts to accepted so it can be rescheduled.
func (s *Scheduler) Cancel(slotID uint, reason string) (*models.TimetableSlot, error) {
	slot, err := s.timetable.SlotByID(slotID)
	if err != nil {
		return nil, err
	}
	wasStarted := slot.ActualStart != nil

	slot, err = s.timetable.Cancel(slotID, reason)
	if err != nil {
		return nil, err
	}

	if wasStarted {
		order, err := s.orders.ByID(slot.OrderID)
		if err != nil {
			return nil, err
		}
		if order.Status == string(models.OrderStatusInProgress) {
			if err := s.orders.SetStatus(order.ID, models.OrderStatusAccepted); err != nil {
				return nil, err
			}
		}
	}

	s.publish("slot_cancelled", slot)
	return slot, nil
}

// AddPause records interrupted minutes on a running slot.
func (s *Scheduler) AddPause(slotID uint, minutes float64) (*models.TimetableSlot, error) {
	return s.timetable.AddPause(slotID, minutes)
}

func (s *Scheduler) recordAssignment(machineType string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		if reason, ok := models.ReasonOf(err); ok {
			result = string(reason)
			if reason == models.ReasonConflict {
				s.metrics.RecordConflict()
			}
		} else {
			result = "error"
		}
	}
	s.metrics.RecordAssignment(machineType, result)
}

func (s *Scheduler) publish(event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Publish(event, payload)
	}
}
