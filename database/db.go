package database

import (
	"fmt"
	"os"

	"homecare-booking/logger"
	"homecare-booking/models/booking"
	"homecare-booking/models/customer"
	"homecare-booking/models/dispatch"
	"homecare-booking/models/log"
	"homecare-booking/models/notification"
	"homecare-booking/models/transaction"
	"homecare-booking/models/worker"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection with auto migration and indexing
func InitDB() (*gorm.DB, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	user := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE") // Optional: "disable", "require", etc.

	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, database, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := AutoMigrate(DB); err != nil {
		logger.Error("Failed to run migrations", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	if err := createForeignKeyConstraints(); err != nil {
		logger.Error("Failed to create foreign key constraints", err)
		return nil, err
	}
	logger.Success("All foreign key constraints created successfully")

	if err := createIndexes(); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return DB, nil
}

// AutoMigrate runs auto migration for all models in dependency stages.
func AutoMigrate(db *gorm.DB) error {
	// Stage 1: Core foundation models
	stage1Models := []interface{}{
		&customer.Customer{},
		&worker.Worker{},
	}

	for _, model := range stage1Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: Models with dependencies on Stage 1
	stage2Models := []interface{}{
		&worker.CoverageZone{},
		&booking.Booking{},
		&booking.BookingItem{},
	}

	for _, model := range stage2Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: Ledgers and trails hanging off bookings
	stage3Models := []interface{}{
		&booking.BookingStatusEvent{},
		&transaction.Transaction{},
		&dispatch.CoverageNotification{},
		&notification.Notification{},
	}

	for _, model := range stage3Models {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Remaining models
	remainingModels := []interface{}{
		// Logging
		&log.Log{},
	}

	for _, model := range remainingModels {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// createIndexes creates additional indexes for better performance
func createIndexes() error {
	// Booking indexes; updated_at feeds the reconciliation candidate scans.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_reference ON bookings(reference)").Error; err != nil {
		return fmt.Errorf("failed to create booking reference index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)").Error; err != nil {
		return fmt.Errorf("failed to create booking status index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_payment_status ON bookings(payment_status)").Error; err != nil {
		return fmt.Errorf("failed to create booking payment_status index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_updated_at ON bookings(updated_at)").Error; err != nil {
		return fmt.Errorf("failed to create booking updated_at index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_bookings_worker_schedule ON bookings(worker_id, scheduled_date)").Error; err != nil {
		return fmt.Errorf("failed to create booking worker schedule index: %w", err)
	}

	// Transaction indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_gateway_ref ON transactions(gateway_payment_ref)").Error; err != nil {
		return fmt.Errorf("failed to create transaction gateway_ref index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_transactions_booking_op ON transactions(booking_id, operation_type)").Error; err != nil {
		return fmt.Errorf("failed to create transaction booking_op index: %w", err)
	}

	// Coverage notification indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_coverage_notifications_booking ON coverage_notifications(booking_id, response)").Error; err != nil {
		return fmt.Errorf("failed to create coverage notification booking index: %w", err)
	}

	// Log indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_status_code ON logs(status_code)").Error; err != nil {
		return fmt.Errorf("failed to create log status_code index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create log created_at index: %w", err)
	}

	return nil
}

// createForeignKeyConstraints creates foreign key constraints after auto migration
func createForeignKeyConstraints() error {
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_bookings_worker",
			sql: `ALTER TABLE bookings ADD CONSTRAINT fk_bookings_worker
				  FOREIGN KEY (worker_id) REFERENCES workers(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_transactions_booking",
			sql: `ALTER TABLE transactions ADD CONSTRAINT fk_transactions_booking
				  FOREIGN KEY (booking_id) REFERENCES bookings(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_coverage_notifications_booking",
			sql: `ALTER TABLE coverage_notifications ADD CONSTRAINT fk_coverage_notifications_booking
				  FOREIGN KEY (booking_id) REFERENCES bookings(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
	}

	for _, constraint := range constraints {
		var exists bool
		checkSQL := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE constraint_name = $1
			)
		`

		err := DB.Raw(checkSQL, constraint.name).Scan(&exists).Error
		if err != nil {
			logger.Warning(fmt.Sprintf("Failed to check constraint existence: %s - Error: %v", constraint.name, err))
			continue
		}

		if !exists {
			if err := DB.Exec(constraint.sql).Error; err != nil {
				logger.Warning(fmt.Sprintf("Failed to create constraint: %s - Error: %v", constraint.name, err))
			} else {
				logger.Success(fmt.Sprintf("Successfully created constraint: %s", constraint.name))
			}
		} else {
			logger.Debug(fmt.Sprintf("Constraint already exists: %s", constraint.name))
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
