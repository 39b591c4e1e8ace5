package gormstore

import (
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectBook      = "book"
	errorSubjectAccount   = "account"
	errorSubjectLoan      = "loan"
	errorSubjectFine      = "fine"
	errorCodeInsert       = "insert"
	errorCodeGet          = "get"
	errorCodeUpdate       = "update"
	errorCodeDelete       = "delete"
	errorCodeList         = "list"
	errorCodeCount        = "count"
	errorCodeSum          = "sum"
	errorCodeAdjust       = "adjust"
	errorCodeSettle       = "settle"
	errorCodeDuplicate    = "duplicate"
	errorCodeInvalid      = "invalid"
)

func wrapStoreError(subject string, code string, err error) error {
	return library.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func mapBook(row BookRow) (library.Book, error) {
	bookID, err := library.NewBookID(row.ISBN)
	if err != nil {
		return library.Book{}, err
	}
	unitCost, err := library.NewMoney(row.UnitCostCents)
	if err != nil {
		return library.Book{}, err
	}
	return library.Book{
		ID:              bookID,
		Title:           row.Title,
		Author:          row.Author,
		AvailableCopies: row.AvailableCopies,
		UnitCost:        unitCost,
	}, nil
}

func mapAccount(row AccountRow) (library.Account, error) {
	accountID, err := library.NewAccountID(row.AccountID)
	if err != nil {
		return library.Account{}, err
	}
	role, err := library.ParseRole(row.Role)
	if err != nil {
		return library.Account{}, err
	}
	deposit, err := library.NewMoney(row.DepositCents)
	if err != nil {
		return library.Account{}, err
	}
	wallet, err := library.NewMoney(row.WalletCents)
	if err != nil {
		return library.Account{}, err
	}
	ceiling, err := library.NewMoney(row.FineCeilingCents)
	if err != nil {
		return library.Account{}, err
	}
	return library.Account{
		ID:             accountID,
		DisplayName:    row.DisplayName,
		SecretHash:     row.SecretHash,
		Role:           role,
		DepositBalance: deposit,
		WalletBalance:  wallet,
		FineCeiling:    ceiling,
	}, nil
}

func mapLoan(row LoanRow) (library.Loan, error) {
	borrowerID, err := library.NewAccountID(row.BorrowerID)
	if err != nil {
		return library.Loan{}, err
	}
	bookID, err := library.NewBookID(row.BookID)
	if err != nil {
		return library.Loan{}, err
	}
	status, err := library.ParseLoanStatus(row.Status)
	if err != nil {
		return library.Loan{}, err
	}
	var returnedOn *library.Date
	if row.ReturnedOn != nil {
		value := library.DateOf(*row.ReturnedOn)
		returnedOn = &value
	}
	return library.Loan{
		LoanID:         row.LoanID,
		BorrowerID:     borrowerID,
		BookID:         bookID,
		BorrowedOn:     library.DateOf(row.BorrowedOn),
		DueOn:          library.DateOf(row.DueOn),
		ReturnedOn:     returnedOn,
		ExtensionCount: row.ExtensionCount,
		Status:         status,
	}, nil
}

func mapFine(row FineRow) (library.Fine, error) {
	ownerID, err := library.NewAccountID(row.OwnerID)
	if err != nil {
		return library.Fine{}, err
	}
	bookID, err := library.NewBookID(row.BookID)
	if err != nil {
		return library.Fine{}, err
	}
	cause, err := library.ParseFineCause(row.Cause)
	if err != nil {
		return library.Fine{}, err
	}
	amount, err := library.NewMoney(row.AmountCents)
	if err != nil {
		return library.Fine{}, err
	}
	return library.Fine{
		FineID:   row.FineID,
		OwnerID:  ownerID,
		BookID:   bookID,
		Amount:   amount,
		Cause:    cause,
		IssuedOn: library.DateOf(row.IssuedOn),
		Settled:  row.Settled,
	}, nil
}
