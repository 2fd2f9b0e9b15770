package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stitchadmin/internal/models"
	"stitchadmin/internal/scheduler"
)

// Planning and schedule queries

func (s *Server) GetPlanning(c *gin.Context) {
	view, err := s.Scheduler.Planning()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) GetUnassigned(c *gin.Context) {
	orders, err := s.Scheduler.Unassigned()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) GetMachineSchedule(c *gin.Context) {
	machineID, ok := paramID(c)
	if !ok {
		return
	}

	from := time.Now()
	to := from.AddDate(0, 0, 7)
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = parsed
	}

	slots, err := s.Scheduler.MachineSchedule(machineID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

func (s *Server) GetTimeHistory(c *gin.Context) {
	orderID, ok := paramID(c)
	if !ok {
		return
	}
	entries, err := s.Scheduler.TimeHistory(orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) PostEstimate(c *gin.Context) {
	var req struct {
		OrderID   uint `json:"order_id" binding:"required"`
		MachineID uint `json:"machine_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	est, err := s.Scheduler.Estimate(req.OrderID, req.MachineID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

func (s *Server) GetMonitor(c *gin.Context) {
	c.JSON(http.StatusOK, s.Monitor.GetMetrics())
}

// Schedule commands

func (s *Server) PostAssignment(c *gin.Context) {
	var req struct {
		OrderID        uint       `json:"order_id" binding:"required"`
		MachineID      uint       `json:"machine_id" binding:"required"`
		RequestedStart *time.Time `json:"requested_start"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	if req.RequestedStart != nil {
		start = *req.RequestedStart
	}

	assignment, err := s.Scheduler.Assign(req.OrderID, req.MachineID, start)
	if err != nil {
		respondError(c, err)
		return
	}
	s.Monitor.IncrementMetric("assignments_committed")
	c.JSON(http.StatusCreated, assignment)
}

func (s *Server) PostSlotStart(c *gin.Context) {
	slotID, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Operator string `json:"operator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := s.Scheduler.Start(slotID, req.Operator)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) PostSlotComplete(c *gin.Context) {
	slotID, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Operator string             `json:"operator"`
		Observed scheduler.Observed `json:"observed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := s.Scheduler.Complete(slotID, req.Operator, req.Observed)
	if err != nil {
		respondError(c, err)
		return
	}
	s.Monitor.IncrementMetric("runs_completed")
	c.JSON(http.StatusOK, entry)
}

func (s *Server) PostSlotCancel(c *gin.Context) {
	slotID, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := s.Scheduler.Cancel(slotID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) PostSlotPause(c *gin.Context) {
	slotID, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Minutes float64 `json:"minutes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := s.Scheduler.AddPause(slotID, req.Minutes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

// Helpers

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps typed scheduling failures onto HTTP statuses and
// attaches the operator-facing message next to the machine-readable reason.
func respondError(c *gin.Context, err error) {
	reason, ok := models.ReasonOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusUnprocessableEntity
	switch reason {
	case models.ReasonNotFound:
		status = http.StatusNotFound
	case models.ReasonConflict, models.ReasonAlreadyAssigned, models.ReasonNoFreeSlot:
		status = http.StatusConflict
	case models.ReasonInvariantViolation:
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{
		"error":   err.Error(),
		"reason":  string(reason),
		"message": models.HumanMessage(err),
	})
}
