package database

import (
	"log"

	"github.com/jinzhu/gorm"

	"stitchadmin/internal/models"
)

// Seed inserts a demo machine park and thread stock when the database is
// empty, so a fresh checkout has something to schedule against.
func Seed(db *gorm.DB) {
	var machineCount int
	db.Model(&models.Machine{}).Count(&machineCount)
	if machineCount > 0 {
		return
	}

	machines := []models.Machine{
		{
			Name:                "Tajima 6-head",
			Type:                string(models.MachineTypeEmbroidery),
			Status:              string(models.MachineStatusActive),
			MaxAreaWidthMM:      400,
			MaxAreaHeightMM:     450,
			MaxSpeed:            1000,
			NumHeads:            6,
			NeedlesPerHead:      12,
			NumNeedles:          72,
			SetupMinutes:        15,
			ThreadChangeMinutes: 3,
			HoopChangeMinutes:   5,
			WorkdayStartMinute:  7 * 60,
			WorkdayEndMinute:    16 * 60,
			ActiveWeekdays:      "12345",
		},
		{
			Name:                "Brother single-head",
			Type:                string(models.MachineTypeEmbroidery),
			Status:              string(models.MachineStatusActive),
			MaxAreaWidthMM:      200,
			MaxAreaHeightMM:     300,
			MaxSpeed:            1000,
			NumHeads:            1,
			NeedlesPerHead:      10,
			NumNeedles:          10,
			SetupMinutes:        15,
			ThreadChangeMinutes: 3,
			HoopChangeMinutes:   5,
			WorkdayStartMinute:  7 * 60,
			WorkdayEndMinute:    16 * 60,
			ActiveWeekdays:      "12345",
		},
		{
			Name:               "Epson DTF line",
			Type:               string(models.MachineTypeDTF),
			Status:             string(models.MachineStatusActive),
			MaxPrintWidthMM:    600,
			SetupMinutes:       10,
			WorkdayStartMinute: 8 * 60,
			WorkdayEndMinute:   17 * 60,
			ActiveWeekdays:     "12345",
		},
	}
	for i := range machines {
		if err := db.Create(&machines[i]).Error; err != nil {
			log.Printf("Error seeding machine %s: %v", machines[i].Name, err)
		}
	}

	threads := []models.Thread{
		{ColorCode: "1801", Name: "Black", QuantityOnHand: 24, MinStock: 6},
		{ColorCode: "1001", Name: "White", QuantityOnHand: 18, MinStock: 6},
		{ColorCode: "1147", Name: "Gold", QuantityOnHand: 4, MinStock: 5},
		{ColorCode: "1535", Name: "Royal Blue", QuantityOnHand: 9, MinStock: 3},
	}
	for i := range threads {
		if err := db.Create(&threads[i]).Error; err != nil {
			log.Printf("Error seeding thread %s: %v", threads[i].ColorCode, err)
		}
	}

	log.Println("Seeded demo machine park and thread stock")
}
