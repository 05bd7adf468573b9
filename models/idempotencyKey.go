package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const idempotencyScopeIssue = "loan_issue"

// IdempotencyKey remembers which loan a client-supplied Idempotency-Key produced.
// Unique constraint: (scope, idem_key).
type IdempotencyKey struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Scope     string    `gorm:"size:50;not null;index:uniq_idem,unique" json:"scope"`
	IdemKey   string    `gorm:"size:255;not null;index:uniq_idem,unique" json:"idem_key"`
	LoanId    int       `gorm:"not null" json:"loan_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

var errIdempotencyRace = errors.New("idempotency key taken concurrently")

// findIssueReplay returns the loan recorded for key, if any.
func findIssueReplay(tx *gorm.DB, key string) (*LoanTransaction, bool, error) {
	var idem IdempotencyKey
	err := tx.Where("scope = ? AND idem_key = ?", idempotencyScopeIssue, key).First(&idem).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeError("lookup idempotency key", err)
	}
	var loan LoanTransaction
	if err := tx.First(&loan, idem.LoanId).Error; err != nil {
		return nil, false, storeError("load replayed loan", err)
	}
	return &loan, true, nil
}

func recordIssueKey(tx *gorm.DB, key string, loanId int) error {
	err := tx.Create(&IdempotencyKey{Scope: idempotencyScopeIssue, IdemKey: key, LoanId: loanId}).Error
	if isDuplicateKey(err) {
		return errIdempotencyRace
	}
	return storeError("record idempotency key", err)
}
