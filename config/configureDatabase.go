package config

import (
	"fmt"
	"time"

	"logistics-backend/db/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models
var allModels = []interface{}{
	// Operational vehicle tables
	&models.VehicleBasicInformation{},
	&models.VehicleSpecification{},
	&models.VehicleCapacityDetail{},
	&models.VehicleOwnershipDetail{},
	&models.VehicleDocument{},

	// Bulk upload tracking
	&models.VehicleBulkUploadBatch{},
	&models.VehicleBulkUploadRecord{},
}

func ConfigureDatabase() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		GetEnv("DB_HOST"),
		GetEnv("POSTGRES_USER"),
		GetEnv("POSTGRES_PASSWORD"),
		GetEnv("POSTGRES_DB"),
		GetEnvDefault("DB_PORT", "5432"),
		GetEnvDefault("DB_TIMEZONE", "UTC"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		Logger.Fatal("[DB-CONNECT] Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		Logger.Fatal("failed to migrate tables", zap.Error(err))
	}
	Logger.Info("Tables migrated successfully")

	if err := CreateRegistrationNumberPartialIndex(db); err != nil {
		Logger.Fatal("failed to create registration number index", zap.Error(err))
	}

	// Connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		Logger.Fatal("[DB-POOL] Failed to get underlying DB connection", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	Logger.Info("[DB-STATUS] Database setup complete")
	return db
}
