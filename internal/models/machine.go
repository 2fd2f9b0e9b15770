package models

import (
	"strings"
	"time"

	"github.com/jinzhu/gorm"
)

// Machine represents a production machine in the workshop
type Machine struct {
	gorm.Model
	Name   string
	Type   string
	Status string

	// Embroidery capabilities
	MaxAreaWidthMM  float64
	MaxAreaHeightMM float64
	MaxSpeed        float64 // stitches per minute at peak
	NumHeads        int
	NeedlesPerHead  int
	NumNeedles      int // always NumHeads * NeedlesPerHead

	// Process-time constants (minutes)
	SetupMinutes        float64
	ThreadChangeMinutes float64
	HoopChangeMinutes   float64

	// Print capabilities
	MaxPrintWidthMM float64

	// Operating window: minutes from midnight plus active weekdays
	// encoded as digits 0..6 (Sunday = 0), e.g. "12345".
	WorkdayStartMinute int
	WorkdayEndMinute   int
	ActiveWeekdays     string

	Notes string
}

// MachineType represents the production technology of a machine
type MachineType string

const (
	MachineTypeEmbroidery  MachineType = "embroidery"
	MachineTypeDTF         MachineType = "dtf"
	MachineTypeDTG         MachineType = "dtg"
	MachineTypeVinyl       MachineType = "vinyl"
	MachineTypeSublimation MachineType = "sublimation"
)

// MachineStatus represents the operational status of a machine
type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "active"
	MachineStatusInactive    MachineStatus = "inactive"
	MachineStatusMaintenance MachineStatus = "maintenance"
)

// ActiveOn reports whether the machine operates on the given weekday.
// An empty ActiveWeekdays string means Monday through Friday.
func (m *Machine) ActiveOn(day time.Weekday) bool {
	if m.ActiveWeekdays == "" {
		return day >= time.Monday && day <= time.Friday
	}
	return strings.ContainsRune(m.ActiveWeekdays, rune('0'+int(day)))
}

// WindowOn returns the operating window of the machine on the given date,
// or ok=false when the machine does not run that day.
func (m *Machine) WindowOn(date time.Time) (start, end time.Time, ok bool) {
	if !m.ActiveOn(date.Weekday()) {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	startMin, endMin := m.WorkdayStartMinute, m.WorkdayEndMinute
	if endMin <= startMin {
		// unset or malformed window: default shop hours
		startMin, endMin = 8*60, 17*60
	}
	return midnight.Add(time.Duration(startMin) * time.Minute),
		midnight.Add(time.Duration(endMin) * time.Minute), true
}

// CanProduce reports whether the machine type can run the given production type.
func (m *Machine) CanProduce(productionType string) bool {
	switch MachineType(m.Type) {
	case MachineTypeEmbroidery:
		return productionType == ProductionTypeEmbroidery || productionType == ProductionTypeCombined
	case MachineTypeDTF, MachineTypeDTG, MachineTypeVinyl, MachineTypeSublimation:
		return productionType == ProductionTypePrinting || productionType == ProductionTypeCombined
	default:
		return false
	}
}
