package scheduler

import (
	"sort"
	"time"

	"stitchadmin/internal/config"
	"stitchadmin/internal/estimator"
	"stitchadmin/internal/models"
)

// QueueEntry represents one order in a planning queue with its estimate
// and the stock situation of its required thread colors.
type QueueEntry struct {
	Order       models.Order         `json:"order"`
	Estimate    estimator.Estimate   `json:"estimate"`
	ThreadStock []models.ThreadStock `json:"thread_stock,omitempty"`
	LowStock    bool                 `json:"low_stock"`
}

// PlanningView represents the grouped, priority-sorted queues of orders
// waiting for machine time.
type PlanningView struct {
	Embroidery []QueueEntry `json:"embroidery"`
	DTF        []QueueEntry `json:"dtf"`
	Print      []QueueEntry `json:"print"`
	AsOf       time.Time    `json:"as_of"`
}

// Planning builds the planning view over all schedulable, unassigned
// orders. A failed estimate never hides an order: the entry degrades to
// the physical baseline with low confidence.
func (s *Scheduler) Planning() (*PlanningView, error) {
	orders, err := s.orders.Schedulable()
	if err != nil {
		return nil, err
	}

	embroideryMachine := s.firstActiveOfType(models.MachineTypeEmbroidery)
	dtfMachine := s.firstActiveOfType(models.MachineTypeDTF)

	view := &PlanningView{AsOf: s.clock.Now()}
	for _, order := range orders {
		if _, assigned := s.timetable.ActiveSlotForOrder(order.ID); assigned {
			continue
		}

		switch order.ProductionType {
		case models.ProductionTypeEmbroidery, models.ProductionTypeCombined:
			view.Embroidery = append(view.Embroidery, s.queueEntry(order, embroideryMachine))
			if order.ProductionType == models.ProductionTypeCombined {
				view.Print = append(view.Print, s.queueEntry(order, dtfMachine))
			}
		case models.ProductionTypePrinting:
			entry := s.queueEntry(order, dtfMachine)
			if dtfMachine != nil {
				view.DTF = append(view.DTF, entry)
			} else {
				view.Print = append(view.Print, entry)
			}
		}
	}

	sortQueue(view.Embroidery)
	sortQueue(view.DTF)
	sortQueue(view.Print)
	return view, nil
}

func (s *Scheduler) queueEntry(order models.Order, machine *models.Machine) QueueEntry {
	entry := QueueEntry{Order: order}

	if machine != nil {
		entry.Estimate = s.estimator.Estimate(&order, machine)
		if s.metrics != nil {
			workType := models.WorkTypeEmbroideryRun
			if order.ProductionType == models.ProductionTypePrinting {
				workType = models.WorkTypePrintRun
			}
			s.metrics.RecordEstimate(workType, entry.Estimate.Confidence, entry.Estimate.Minutes)
		}
	} else {
		entry.Estimate = estimator.Estimate{
			Confidence:  estimator.ConfidenceLow,
			Explanation: "no active machine for this work type",
		}
	}

	if colors := order.ColorList(); len(colors) > 0 && s.inventory != nil {
		stocks, err := s.inventory.StockFor(colors)
		if err == nil {
			entry.ThreadStock = stocks
			for _, stock := range stocks {
				if stock.LowStock {
					entry.LowStock = true
					break
				}
			}
		}
	}
	return entry
}

func (s *Scheduler) firstActiveOfType(machineType models.MachineType) *models.Machine {
	machines, err := s.machines.ListByStatus(models.MachineStatusActive)
	if err != nil {
		return nil
	}
	for i := range machines {
		if machines[i].Type == string(machineType) {
			return &machines[i]
		}
	}
	return nil
}

// sortQueue orders entries by priority rank, then requested pickup date,
// then creation time. Assign is intended to be called in this order.
func sortQueue(queue []QueueEntry) {
	sort.SliceStable(queue, func(i, j int) bool {
		ri, rj := config.RankOf(queue[i].Order.Priority), config.RankOf(queue[j].Order.Priority)
		if ri != rj {
			return ri < rj
		}
		pi, pj := queue[i].Order.RequestedPickup, queue[j].Order.RequestedPickup
		switch {
		case pi != nil && pj != nil && !pi.Equal(*pj):
			return pi.Before(*pj)
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		}
		return queue[i].Order.CreatedAt.Before(queue[j].Order.CreatedAt)
	})
}

// Unassigned returns schedulable orders that hold no active slot, oldest
// first.
func (s *Scheduler) Unassigned() ([]models.Order, error) {
	orders, err := s.orders.Schedulable()
	if err != nil {
		return nil, err
	}
	unassigned := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if _, assigned := s.timetable.ActiveSlotForOrder(order.ID); !assigned {
			unassigned = append(unassigned, order)
		}
	}
	return unassigned, nil
}

// MachineSchedule returns the machine's slots overlapping [t0, t1).
func (s *Scheduler) MachineSchedule(machineID uint, t0, t1 time.Time) ([]models.TimetableSlot, error) {
	if _, err := s.machines.ByID(machineID); err != nil {
		return nil, err
	}
	return s.timetable.JobsBetween(machineID, t0, t1)
}

// Estimate returns the duration estimate for an order. With machineID zero
// the first active machine of the matching type is used.
func (s *Scheduler) Estimate(orderID, machineID uint) (*estimator.Estimate, error) {
	order, err := s.orders.ByID(orderID)
	if err != nil {
		return nil, err
	}

	var machine *models.Machine
	if machineID != 0 {
		machine, err = s.machines.ByID(machineID)
		if err != nil {
			return nil, err
		}
	} else {
		machineType := models.MachineTypeEmbroidery
		if order.ProductionType == models.ProductionTypePrinting {
			machineType = models.MachineTypeDTF
		}
		machine = s.firstActiveOfType(machineType)
		if machine == nil {
			return nil, models.NewError(models.ReasonMachineUnavailable,
				"no active %s machine to estimate against", machineType)
		}
	}

	est := s.estimator.Estimate(order, machine)
	return &est, nil
}

// TimeHistory returns the completed runs recorded for an order, newest
// first.
func (s *Scheduler) TimeHistory(orderID uint) ([]models.HistoryEntry, error) {
	if _, err := s.orders.ByID(orderID); err != nil {
		return nil, err
	}
	return s.histStore.EntriesForOrder(orderID)
}
