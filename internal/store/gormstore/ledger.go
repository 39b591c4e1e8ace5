package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

// Ledger implements library.LedgerStore using GORM.
type Ledger struct {
	db *gorm.DB
}

// NewLedger returns a Ledger store backed by gorm.DB.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx executes fn within a transaction.
func (store *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context, txStore library.LedgerStore) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Ledger{db: transaction})
	})
}

func (store *Ledger) InsertLoan(ctx context.Context, loan library.Loan) error {
	row := loanRowFrom(loan)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectLoan, errorCodeDuplicate, library.ErrAlreadyBorrowed)
	}
	if err != nil {
		return wrapStoreError(errorSubjectLoan, errorCodeInsert, err)
	}
	return nil
}

func (store *Ledger) UpdateLoan(ctx context.Context, loan library.Loan) error {
	var returnedOn *time.Time
	if loan.ReturnedOn != nil {
		value := loan.ReturnedOn.Time()
		returnedOn = &value
	}
	result := store.db.WithContext(ctx).
		Model(&LoanRow{}).
		Where("loan_id = ?", loan.LoanID).
		Updates(map[string]interface{}{
			"due_on":          loan.DueOn.Time(),
			"returned_on":     returnedOn,
			"extension_count": loan.ExtensionCount,
			"status":          loan.Status.String(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectLoan, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLoan, errorCodeUpdate, library.ErrNoOpenLoan)
	}
	return nil
}

func (store *Ledger) GetOpenLoan(ctx context.Context, borrowerID library.AccountID, bookID library.BookID) (library.Loan, error) {
	var row LoanRow
	err := store.db.WithContext(ctx).
		Where("borrower_id = ? AND book_id = ? AND returned_on IS NULL", borrowerID.String(), bookID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeGet, library.ErrNoOpenLoan)
		}
		return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeGet, err)
	}
	loan, err := mapLoan(row)
	if err != nil {
		return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeInvalid, err)
	}
	return loan, nil
}

func (store *Ledger) GetOpenLoanForBook(ctx context.Context, bookID library.BookID) (library.Loan, error) {
	var row LoanRow
	err := store.db.WithContext(ctx).
		Where("book_id = ? AND returned_on IS NULL", bookID.String()).
		Order("borrowed_on ASC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeGet, library.ErrNoOpenLoan)
		}
		return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeGet, err)
	}
	loan, err := mapLoan(row)
	if err != nil {
		return library.Loan{}, wrapStoreError(errorSubjectLoan, errorCodeInvalid, err)
	}
	return loan, nil
}

func (store *Ledger) CountOpenLoans(ctx context.Context, borrowerID library.AccountID) (int, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LoanRow{}).
		Where("borrower_id = ? AND returned_on IS NULL", borrowerID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectLoan, errorCodeCount, err)
	}
	return int(count), nil
}

func (store *Ledger) ListOpenLoans(ctx context.Context, borrowerID library.AccountID) ([]library.Loan, error) {
	var rows []LoanRow
	err := store.db.WithContext(ctx).
		Where("borrower_id = ? AND returned_on IS NULL", borrowerID.String()).
		Order("borrowed_on ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLoan, errorCodeList, err)
	}
	return mapLoans(rows)
}

func (store *Ledger) ListLoansByBorrower(ctx context.Context, borrowerID library.AccountID) ([]library.Loan, error) {
	var rows []LoanRow
	err := store.db.WithContext(ctx).
		Where("borrower_id = ?", borrowerID.String()).
		Order("borrowed_on DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLoan, errorCodeList, err)
	}
	return mapLoans(rows)
}

func (store *Ledger) ListOpenLoansDueBefore(ctx context.Context, cutoff library.Date) ([]library.Loan, error) {
	var rows []LoanRow
	err := store.db.WithContext(ctx).
		Where("returned_on IS NULL AND due_on < ?", cutoff.Time()).
		Order("due_on ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLoan, errorCodeList, err)
	}
	return mapLoans(rows)
}

func (store *Ledger) HasOpenLoanOnBook(ctx context.Context, bookID library.BookID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LoanRow{}).
		Where("book_id = ? AND returned_on IS NULL", bookID.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectLoan, errorCodeCount, err)
	}
	return count > 0, nil
}

func (store *Ledger) CountLoansPerBook(ctx context.Context) (map[library.BookID]int, error) {
	type bookCount struct {
		BookID string
		Total  int64
	}
	var rows []bookCount
	err := store.db.WithContext(ctx).
		Model(&LoanRow{}).
		Select("book_id, count(*) as total").
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLoan, errorCodeCount, err)
	}
	counts := make(map[library.BookID]int, len(rows))
	for _, row := range rows {
		bookID, err := library.NewBookID(row.BookID)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLoan, errorCodeInvalid, err)
		}
		counts[bookID] = int(row.Total)
	}
	return counts, nil
}

func (store *Ledger) InsertFine(ctx context.Context, fine library.Fine) error {
	row := fineRowFrom(fine)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectFine, errorCodeInsert, err)
	}
	return nil
}

func (store *Ledger) GetUnsettledFine(ctx context.Context, ownerID library.AccountID, bookID library.BookID, cause library.FineCause) (library.Fine, error) {
	var row FineRow
	err := store.db.WithContext(ctx).
		Where("owner_id = ? AND book_id = ? AND cause = ? AND settled = ?", ownerID.String(), bookID.String(), cause.String(), false).
		Order("issued_on ASC, created_at ASC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return library.Fine{}, wrapStoreError(errorSubjectFine, errorCodeGet, library.ErrFineNotFound)
		}
		return library.Fine{}, wrapStoreError(errorSubjectFine, errorCodeGet, err)
	}
	fine, err := mapFine(row)
	if err != nil {
		return library.Fine{}, wrapStoreError(errorSubjectFine, errorCodeInvalid, err)
	}
	return fine, nil
}

func (store *Ledger) MarkFineSettled(ctx context.Context, fineID string) error {
	result := store.db.WithContext(ctx).
		Model(&FineRow{}).
		Where("fine_id = ? AND settled = ?", fineID, false).
		Update("settled", true)
	if result.Error != nil {
		return wrapStoreError(errorSubjectFine, errorCodeSettle, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectFine, errorCodeSettle, library.ErrFineNotFound)
	}
	return nil
}

func (store *Ledger) ListUnsettledFines(ctx context.Context, ownerID library.AccountID) ([]library.Fine, error) {
	var rows []FineRow
	err := store.db.WithContext(ctx).
		Where("owner_id = ? AND settled = ?", ownerID.String(), false).
		Order("issued_on DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectFine, errorCodeList, err)
	}
	return mapFines(rows)
}

func (store *Ledger) ListFinesByOwner(ctx context.Context, ownerID library.AccountID) ([]library.Fine, error) {
	var rows []FineRow
	err := store.db.WithContext(ctx).
		Where("owner_id = ?", ownerID.String()).
		Order("issued_on DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectFine, errorCodeList, err)
	}
	return mapFines(rows)
}

func (store *Ledger) ListAllFines(ctx context.Context) ([]library.Fine, error) {
	var rows []FineRow
	err := store.db.WithContext(ctx).
		Order("issued_on DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectFine, errorCodeList, err)
	}
	return mapFines(rows)
}

func (store *Ledger) ListAllUnsettledFines(ctx context.Context) ([]library.Fine, error) {
	var rows []FineRow
	err := store.db.WithContext(ctx).
		Where("settled = ?", false).
		Order("issued_on DESC, created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectFine, errorCodeList, err)
	}
	return mapFines(rows)
}

func (store *Ledger) SumUnsettledFines(ctx context.Context, ownerID library.AccountID) (library.Money, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&FineRow{}).
		Select("coalesce(sum(amount_cents),0) as total").
		Where("owner_id = ? AND settled = ?", ownerID.String(), false).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectFine, errorCodeSum, err)
	}
	total, err := library.NewMoney(sum.Total)
	if err != nil {
		return 0, wrapStoreError(errorSubjectFine, errorCodeInvalid, err)
	}
	return total, nil
}

func (store *Ledger) HasUnsettledFines(ctx context.Context, ownerID library.AccountID) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&FineRow{}).
		Where("owner_id = ? AND settled = ?", ownerID.String(), false).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectFine, errorCodeCount, err)
	}
	return count > 0, nil
}

func loanRowFrom(loan library.Loan) LoanRow {
	var returnedOn *time.Time
	if loan.ReturnedOn != nil {
		value := loan.ReturnedOn.Time()
		returnedOn = &value
	}
	return LoanRow{
		LoanID:         loan.LoanID,
		BorrowerID:     loan.BorrowerID.String(),
		BookID:         loan.BookID.String(),
		BorrowedOn:     loan.BorrowedOn.Time(),
		DueOn:          loan.DueOn.Time(),
		ReturnedOn:     returnedOn,
		ExtensionCount: loan.ExtensionCount,
		Status:         loan.Status.String(),
	}
}

func fineRowFrom(fine library.Fine) FineRow {
	return FineRow{
		FineID:      fine.FineID,
		OwnerID:     fine.OwnerID.String(),
		BookID:      fine.BookID.String(),
		AmountCents: fine.Amount.Int64(),
		Cause:       fine.Cause.String(),
		IssuedOn:    fine.IssuedOn.Time(),
		Settled:     fine.Settled,
	}
}

func mapLoans(rows []LoanRow) ([]library.Loan, error) {
	loans := make([]library.Loan, 0, len(rows))
	for _, row := range rows {
		loan, err := mapLoan(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLoan, errorCodeInvalid, err)
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

func mapFines(rows []FineRow) ([]library.Fine, error) {
	fines := make([]library.Fine, 0, len(rows))
	for _, row := range rows {
		fine, err := mapFine(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectFine, errorCodeInvalid, err)
		}
		fines = append(fines, fine)
	}
	return fines, nil
}
