package models

import (
	"github.com/jinzhu/gorm"
)

// Thread represents an embroidery yarn color held in stock. The scheduling
// core reads stock levels for the planning view; stock movements belong to
// the surrounding inventory subsystem.
type Thread struct {
	gorm.Model
	ColorCode      string
	Name           string
	QuantityOnHand float64
	MinStock       float64
	Supplier       string
}

// LowStock reports whether the color is at or below its configured minimum.
func (t *Thread) LowStock() bool {
	return t.QuantityOnHand <= t.MinStock
}

// ThreadStock represents a stock level snapshot for one required color.
type ThreadStock struct {
	ColorCode      string  `json:"color_code"`
	QuantityOnHand float64 `json:"quantity_on_hand"`
	MinStock       float64 `json:"min_stock"`
	LowStock       bool    `json:"low_stock"`
}
