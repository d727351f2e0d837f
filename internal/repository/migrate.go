package repository

import "gorm.io/gorm"

// AutoMigrate creates or updates the tables both services read.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userModel{}, &courseModel{}, &enrollmentModel{})
}
