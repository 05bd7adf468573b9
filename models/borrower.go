package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Borrower is a student, keyed by registration number.
type Borrower struct {
	RegNo      string    `gorm:"primaryKey;size:50" json:"reg_no"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Department string    `gorm:"size:100;not null" json:"department"`
	Year       string    `gorm:"size:20;not null" json:"year"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBorrower struct {
	RegNo      string `json:"reg_no" binding:"required" validate:"required,max=50"`
	Name       string `json:"name" binding:"required" validate:"required,max=255"`
	Department string `json:"department" binding:"required" validate:"required,max=100"`
	Year       string `json:"year" binding:"required" validate:"required,max=20"`
}

type StudentLogin struct {
	RegNo string `json:"reg_no" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

// ProfileUpdate carries reg_no only so a change attempt can be rejected.
type ProfileUpdate struct {
	RegNo      string `json:"reg_no" binding:"required" validate:"required"`
	Name       string `json:"name" binding:"required" validate:"required,max=255"`
	Department string `json:"department" binding:"required" validate:"required,max=100"`
	Year       string `json:"year" binding:"required" validate:"required,max=20"`
}

// Identity is the borrower store.
type Identity struct {
	store
}

func NewIdentity(db *gorm.DB, logg *logrus.Logger, timeout time.Duration) *Identity {
	return &Identity{store{DB: db, Logger: logg, Timeout: timeout}}
}

func (i *Identity) Signup(ctx context.Context, input *NewBorrower) (*Borrower, error) {
	utils.TrimStrings(input)
	if err := validationFromStruct(input); err != nil {
		return nil, err
	}
	b := Borrower{
		RegNo:      input.RegNo,
		Name:       input.Name,
		Department: input.Department,
		Year:       input.Year,
	}

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	if err := i.DB.WithContext(ctx).Create(&b).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, &DuplicateError{Resource: "borrower", Message: "user already exists"}
		}
		return nil, storeError("signup", err)
	}
	return &b, nil
}

// UpsertBorrowerTx inserts b or overwrites name, department and year (last write wins).
func UpsertBorrowerTx(tx *gorm.DB, b *Borrower) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reg_no"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "department", "year", "updated_at"}),
	}).Create(b).Error
	return storeError("upsert borrower", err)
}

func (i *Identity) Get(ctx context.Context, regNo string) (*Borrower, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	var b Borrower
	if err := i.DB.WithContext(ctx).Where("reg_no = ?", regNo).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "borrower", Key: regNo}
		}
		return nil, storeError("get borrower", err)
	}
	return &b, nil
}

// Authenticate is the student login: registration number plus exact name.
func (i *Identity) Authenticate(ctx context.Context, regNo, name string) (*Borrower, error) {
	b, err := i.Get(ctx, regNo)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, &AuthError{Reason: "invalid student id or name"}
		}
		return nil, err
	}
	if b.Name != name {
		return nil, &AuthError{Reason: "invalid student id or name"}
	}
	return b, nil
}

// UpdateProfile edits name, department and year. The registration number is immutable.
func (i *Identity) UpdateProfile(ctx context.Context, regNo string, input *ProfileUpdate) (*Borrower, error) {
	utils.TrimStrings(input)
	if err := validationFromStruct(input); err != nil {
		return nil, err
	}
	if input.RegNo != regNo {
		return nil, NewValidationError("reg_no", "immutable")
	}

	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	var b Borrower
	err := i.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("reg_no = ?", regNo).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "borrower", Key: regNo}
			}
			return err
		}
		b.Name = input.Name
		b.Department = input.Department
		b.Year = input.Year
		return tx.Model(&b).Select("name", "department", "year", "updated_at").Updates(&b).Error
	})
	if err != nil {
		return nil, storeError("update profile", err)
	}
	return &b, nil
}
