package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/lms_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Book struct {
	ID           int              `gorm:"primary_key" json:"id"`
	Department   Department       `gorm:"size:20;not null;index:uniq_book_dept_sno,unique,priority:1" json:"department"`
	Sno          *string          `gorm:"size:50;index:uniq_book_dept_sno,unique,priority:2" json:"sno"`
	Isbn         *string          `gorm:"size:32;index" json:"isbn"`
	Title        string           `gorm:"size:255;not null" json:"title"`
	Author       *string          `gorm:"size:255" json:"author"`
	Publisher    *string          `gorm:"size:255" json:"publisher"`
	Subject      *string          `gorm:"size:255" json:"subject"`
	AccessFrom   *string          `gorm:"size:50" json:"access_from"`
	AccessTo     *string          `gorm:"size:50" json:"access_to"`
	Edition      *string          `gorm:"size:50" json:"edition"`
	Year         *string          `gorm:"size:20" json:"year"`
	TotalVolumes int              `gorm:"not null;default:1" json:"total_volumes"`
	RateBook     *decimal.Decimal `gorm:"type:decimal(12,2)" json:"rate_book"`
	Shelf        *string          `gorm:"size:50" json:"shelf"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBook struct {
	Department   string           `json:"department" binding:"required" validate:"required"`
	Title        string           `json:"title" binding:"required" validate:"required,max=255"`
	Sno          string           `json:"sno" validate:"max=50"`
	Isbn         string           `json:"isbn" validate:"max=32"`
	Author       string           `json:"author"`
	Publisher    string           `json:"publisher"`
	Subject      string           `json:"subject"`
	AccessFrom   string           `json:"access_from"`
	AccessTo     string           `json:"access_to"`
	Edition      string           `json:"edition"`
	Year         string           `json:"year"`
	TotalVolumes int              `json:"total_volumes"`
	RateBook     *decimal.Decimal `json:"rate_book"`
	Shelf        string           `json:"shelf"`
}

// Catalog is the book inventory, one table keyed by department.
type Catalog struct {
	store
}

func NewCatalog(db *gorm.DB, logg *logrus.Logger, timeout time.Duration) *Catalog {
	return &Catalog{store{DB: db, Logger: logg, Timeout: timeout}}
}

// ListByDepartment returns every book of the department. Unknown keys fail before any query.
func (c *Catalog) ListByDepartment(ctx context.Context, key string) ([]Book, error) {
	dept, err := ParseDepartment(key)
	if err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var books []Book
	if err := c.DB.WithContext(ctx).Where("department = ?", dept).Order("id").Find(&books).Error; err != nil {
		return nil, storeError("list books", err)
	}
	return books, nil
}

func (c *Catalog) AddBook(ctx context.Context, input *NewBook) (*Book, error) {
	utils.TrimStrings(input)
	if err := validationFromStruct(input); err != nil {
		return nil, err
	}
	dept, err := ParseDepartment(input.Department)
	if err != nil {
		return nil, err
	}
	if input.RateBook != nil && input.RateBook.IsNegative() {
		return nil, NewValidationError("rate_book", "min")
	}
	volumes := input.TotalVolumes
	if volumes <= 0 {
		volumes = 1
	}

	book := Book{
		Department:   dept,
		Sno:          utils.NilIfEmpty(input.Sno),
		Isbn:         utils.NilIfEmpty(input.Isbn),
		Title:        input.Title,
		Author:       utils.NilIfEmpty(input.Author),
		Publisher:    utils.NilIfEmpty(input.Publisher),
		Subject:      utils.NilIfEmpty(input.Subject),
		AccessFrom:   utils.NilIfEmpty(input.AccessFrom),
		AccessTo:     utils.NilIfEmpty(input.AccessTo),
		Edition:      utils.NilIfEmpty(input.Edition),
		Year:         utils.NilIfEmpty(input.Year),
		TotalVolumes: volumes,
		RateBook:     input.RateBook,
		Shelf:        utils.NilIfEmpty(input.Shelf),
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.DB.WithContext(ctx).Create(&book).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, &DuplicateError{Resource: "book", Message: "a book with serial number " + input.Sno + " already exists in " + string(dept)}
		}
		return nil, storeError("add book", err)
	}
	return &book, nil
}

// TotalVolumes is the number of physical copies across the whole catalog.
func (c *Catalog) TotalVolumes(ctx context.Context) (int64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var total int64
	err := c.DB.WithContext(ctx).Model(&Book{}).Select("COALESCE(SUM(total_volumes), 0)").Scan(&total).Error
	if err != nil {
		return 0, storeError("total volumes", err)
	}
	return total, nil
}

// checkAvailability locks the referenced book and verifies an unlent copy remains.
// bookRef matches the serial number or the ISBN within the department.
func checkAvailability(tx *gorm.DB, dept Department, bookRef string) error {
	var book Book
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("department = ? AND (sno = ? OR isbn = ?)", dept, bookRef, bookRef).
		Order("id").
		First(&book).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "book", Key: string(dept) + "/" + bookRef}
		}
		return storeError("lock book", err)
	}

	var onLoan int64
	err = tx.Model(&LoanTransaction{}).
		Where("book_department = ? AND book_id = ? AND status IN ?", dept, bookRef, OpenLoanStatuses).
		Count(&onLoan).Error
	if err != nil {
		return storeError("count open loans", err)
	}
	if onLoan >= int64(book.TotalVolumes) {
		return NewValidationError("book_id", "no volumes available")
	}
	return nil
}
