package models

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// Order represents the production view of a customer order
type Order struct {
	gorm.Model
	ProductionType string
	Priority       string
	Status         string
	Quantity       int

	// Embroidery attributes
	StitchCount    int
	ThreadColors   string // comma-separated, order matters for change counting
	Position       string
	DesignWidthMM  float64
	DesignHeightMM float64
	FabricType     string
	Complexity     int // 1..5
	NewDesign      bool

	// Print attributes
	PrintWidthCM    float64
	PrintHeightCM   float64
	InkCoveragePct  float64
	ProductionMode  string
	RequestedPickup *time.Time
}

// Production types
const (
	ProductionTypeEmbroidery = "embroidery"
	ProductionTypePrinting   = "printing"
	ProductionTypeCombined   = "combined"
)

// Production modes for print jobs
const (
	ProductionModeInternal = "internal"
	ProductionModeExternal = "external"
)

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderPriority represents the urgency of an order
type OrderPriority string

const (
	PriorityUrgent OrderPriority = "urgent"
	PriorityHigh   OrderPriority = "high"
	PriorityNormal OrderPriority = "normal"
	PriorityLow    OrderPriority = "low"
)

// ColorList returns the distinct thread colors of the order in design order.
func (o *Order) ColorList() []string {
	if o.ThreadColors == "" {
		return nil
	}
	parts := strings.Split(o.ThreadColors, ",")
	colors := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		c := strings.TrimSpace(p)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		colors = append(colors, c)
	}
	return colors
}

// Schedulable reports whether the order is in a state that allows assignment.
func (o *Order) Schedulable() bool {
	return o.Status == string(OrderStatusAccepted) || o.Status == string(OrderStatusInProgress)
}

// PrintAreaCM2 returns the print area in square centimeters.
func (o *Order) PrintAreaCM2() float64 {
	return o.PrintWidthCM * o.PrintHeightCM
}
