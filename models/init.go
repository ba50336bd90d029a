package models

import "gorm.io/gorm"

// Migrate runs schema migration for every entity the engine persists.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Account{},
		&Contact{},
		&ContactTag{},
		&ContactCustomField{},
		&Campaign{},
		&Recipient{},
		&CreditUsage{},
	)
}
