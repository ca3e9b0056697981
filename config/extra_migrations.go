package config

import "gorm.io/gorm"

// CreateRegistrationNumberPartialIndex makes registration numbers unique only when
// they are present. Registration is optional on upload, so a plain unique index
// would reject every second vehicle without one.
func CreateRegistrationNumberPartialIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_basic_registration_number_present
		ON vehicle_basic_information (registration_number)
		WHERE registration_number IS NOT NULL AND registration_number <> '' AND deleted_at IS NULL;
	`).Error
}
