package database

import (
	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"stitchadmin/internal/models"
)

var DB *gorm.DB

// InitDB initializes the database connection and migrates the schema.
// dialect is "sqlite3" or "postgres"; source is the file path or DSN.
func InitDB(dialect, source string) error {
	var err error
	DB, err = gorm.Open(dialect, source)
	if err != nil {
		return err
	}
	return Migrate(DB)
}

// Migrate creates or updates the tables owned by the scheduling core.
func Migrate(db *gorm.DB) error {
	db.AutoMigrate(
		&models.Machine{},
		&models.Order{},
		&models.Thread{},
		&models.TimetableSlot{},
		&models.HistoryEntry{},
		&models.PositionStats{},
	)
	// Query paths of the estimator and the timetable.
	db.Model(&models.TimetableSlot{}).AddIndex("idx_slots_machine_start", "machine_id", "starts_at")
	db.Model(&models.HistoryEntry{}).AddIndex("idx_history_work_position", "work_type", "position")
	db.Model(&models.HistoryEntry{}).AddIndex("idx_history_work_stitches", "work_type", "stitch_count")
	return db.Error
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
