package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookRow represents the books table.
type BookRow struct {
	ISBN            string `gorm:"primaryKey"`
	Title           string `gorm:"not null"`
	Author          string `gorm:"not null"`
	AvailableCopies int    `gorm:"not null"`
	UnitCostCents   int64  `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BookRow) TableName() string { return "books" }

// AccountRow represents the accounts table.
type AccountRow struct {
	AccountID        string `gorm:"primaryKey"`
	DisplayName      string `gorm:"not null"`
	SecretHash       string `gorm:"not null"`
	Role             string `gorm:"not null"`
	DepositCents     int64  `gorm:"not null"`
	WalletCents      int64  `gorm:"not null"`
	FineCeilingCents int64  `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (AccountRow) TableName() string { return "accounts" }

// LoanRow represents the loans table. The partial unique index enforces one
// open loan per borrower/book pair at the database, not just in the service.
type LoanRow struct {
	LoanID         string     `gorm:"type:uuid;primaryKey"`
	BorrowerID     string     `gorm:"not null;index:idx_loans_borrower_open,priority:1;uniqueIndex:uniq_loans_open_pair,priority:1,where:returned_on IS NULL"`
	BookID         string     `gorm:"not null;index:idx_loans_book;uniqueIndex:uniq_loans_open_pair,priority:2,where:returned_on IS NULL"`
	BorrowedOn     time.Time  `gorm:"not null"`
	DueOn          time.Time  `gorm:"not null"`
	ReturnedOn     *time.Time `gorm:"index:idx_loans_borrower_open,priority:2"`
	ExtensionCount int        `gorm:"not null"`
	Status         string     `gorm:"not null"`
	CreatedAt      time.Time  `gorm:"not null"`
}

func (LoanRow) TableName() string { return "loans" }

func (loan *LoanRow) BeforeCreate(tx *gorm.DB) error {
	if loan.LoanID == "" {
		loan.LoanID = uuid.NewString()
	}
	return nil
}

// FineRow represents the fines table.
type FineRow struct {
	FineID      string    `gorm:"type:uuid;primaryKey"`
	OwnerID     string    `gorm:"not null;index:idx_fines_owner_settled,priority:1"`
	BookID      string    `gorm:"not null"`
	AmountCents int64     `gorm:"not null"`
	Cause       string    `gorm:"not null"`
	IssuedOn    time.Time `gorm:"not null"`
	Settled     bool      `gorm:"not null;index:idx_fines_owner_settled,priority:2"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (FineRow) TableName() string { return "fines" }

func (fine *FineRow) BeforeCreate(tx *gorm.DB) error {
	if fine.FineID == "" {
		fine.FineID = uuid.NewString()
	}
	return nil
}

// Models lists every table for schema migration.
func Models() []any {
	return []any{&BookRow{}, &AccountRow{}, &LoanRow{}, &FineRow{}}
}
