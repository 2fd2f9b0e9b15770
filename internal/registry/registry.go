// Package registry provides read access to machines, orders and thread
// stock for the scheduling core. The records themselves are owned by the
// surrounding CRUD subsystems; the core only reads them and writes order
// status transitions.
package registry

import (
	"github.com/jinzhu/gorm"

	"stitchadmin/internal/models"
)

// Machines looks machines up for the scheduler.
type Machines struct {
	db *gorm.DB
}

// NewMachines creates a machine registry.
func NewMachines(db *gorm.DB) *Machines {
	return &Machines{db: db}
}

// ByID returns one machine by identity.
func (r *Machines) ByID(id uint) (*models.Machine, error) {
	var machine models.Machine
	result := r.db.First(&machine, id)
	if result.RecordNotFound() {
		return nil, models.NewError(models.ReasonNotFound, "machine %d does not exist", id)
	}
	return &machine, result.Error
}

// ListByStatus returns machines with the given status, all types.
func (r *Machines) ListByStatus(status models.MachineStatus) ([]models.Machine, error) {
	var machines []models.Machine
	err := r.db.Where("status = ?", status).Order("name").Find(&machines).Error
	return machines, err
}

// Orders looks orders up and applies the status transitions the scheduler
// is allowed to make.
type Orders struct {
	db *gorm.DB
}

// NewOrders creates an order registry.
func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

// ByID returns one order by identity.
func (r *Orders) ByID(id uint) (*models.Order, error) {
	var order models.Order
	result := r.db.First(&order, id)
	if result.RecordNotFound() {
		return nil, models.NewError(models.ReasonNotFound, "order %d does not exist", id)
	}
	return &order, result.Error
}

// Schedulable returns orders eligible for assignment, oldest first.
func (r *Orders) Schedulable() ([]models.Order, error) {
	var orders []models.Order
	err := r.db.
		Where("status IN (?, ?)", models.OrderStatusAccepted, models.OrderStatusInProgress).
		Order("created_at").
		Find(&orders).Error
	return orders, err
}

// SetStatus writes an order status transition.
func (r *Orders) SetStatus(id uint, status models.OrderStatus) error {
	result := r.db.Model(&models.Order{}).Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewError(models.ReasonNotFound, "order %d does not exist", id)
	}
	return nil
}

// ThreadStock reads stock levels for the planning view.
type ThreadStock struct {
	db *gorm.DB
}

// NewThreadStock creates a thread stock registry.
func NewThreadStock(db *gorm.DB) *ThreadStock {
	return &ThreadStock{db: db}
}

// StockFor returns a stock snapshot per required color. Colors without a
// stock record report zero on hand and are flagged low.
func (r *ThreadStock) StockFor(colors []string) ([]models.ThreadStock, error) {
	stocks := make([]models.ThreadStock, 0, len(colors))
	for _, color := range colors {
		var thread models.Thread
		result := r.db.Where("color_code = ?", color).First(&thread)
		if result.RecordNotFound() {
			stocks = append(stocks, models.ThreadStock{ColorCode: color, LowStock: true})
			continue
		}
		if result.Error != nil {
			return nil, result.Error
		}
		stocks = append(stocks, models.ThreadStock{
			ColorCode:      color,
			QuantityOnHand: thread.QuantityOnHand,
			MinStock:       thread.MinStock,
			LowStock:       thread.LowStock(),
		})
	}
	return stocks, nil
}
