package models

import "gorm.io/gorm"

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Book{},
		&Borrower{},
		&LoanTransaction{},
		&LoanEvent{},
		&IdempotencyKey{},
	)
}
