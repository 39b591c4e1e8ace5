package library

import "context"

// CatalogStore is the persistence contract behind the Catalog.
type CatalogStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore CatalogStore) error) error
	InsertBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, bookID BookID) (Book, error)
	UpdateBook(ctx context.Context, book Book) error
	DeleteBook(ctx context.Context, bookID BookID) error
	ListBooks(ctx context.Context) ([]Book, error)
	// AdjustAvailableCopies applies delta to the copy count and fails with
	// ErrBookNotAvailable when the result would drop below zero.
	AdjustAvailableCopies(ctx context.Context, bookID BookID, delta int) error
}

// DirectoryStore is the persistence contract behind the Directory.
type DirectoryStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore DirectoryStore) error) error
	InsertAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	DeleteAccount(ctx context.Context, accountID AccountID) error
	ListAccounts(ctx context.Context) ([]Account, error)
}

// LedgerStore is the persistence contract behind the Ledger. Loans and fines
// are owned exclusively by this store.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore LedgerStore) error) error

	InsertLoan(ctx context.Context, loan Loan) error
	UpdateLoan(ctx context.Context, loan Loan) error
	// GetOpenLoan returns the unique open loan per (borrower, book) pair and
	// fails with ErrNoOpenLoan when none exists.
	GetOpenLoan(ctx context.Context, borrowerID AccountID, bookID BookID) (Loan, error)
	GetOpenLoanForBook(ctx context.Context, bookID BookID) (Loan, error)
	CountOpenLoans(ctx context.Context, borrowerID AccountID) (int, error)
	ListOpenLoans(ctx context.Context, borrowerID AccountID) ([]Loan, error)
	ListLoansByBorrower(ctx context.Context, borrowerID AccountID) ([]Loan, error)
	ListOpenLoansDueBefore(ctx context.Context, cutoff Date) ([]Loan, error)
	HasOpenLoanOnBook(ctx context.Context, bookID BookID) (bool, error)
	CountLoansPerBook(ctx context.Context) (map[BookID]int, error)

	InsertFine(ctx context.Context, fine Fine) error
	// GetUnsettledFine matches owner, book and cause; fails with ErrFineNotFound.
	GetUnsettledFine(ctx context.Context, ownerID AccountID, bookID BookID, cause FineCause) (Fine, error)
	MarkFineSettled(ctx context.Context, fineID string) error
	ListUnsettledFines(ctx context.Context, ownerID AccountID) ([]Fine, error)
	ListFinesByOwner(ctx context.Context, ownerID AccountID) ([]Fine, error)
	ListAllFines(ctx context.Context) ([]Fine, error)
	ListAllUnsettledFines(ctx context.Context) ([]Fine, error)
	SumUnsettledFines(ctx context.Context, ownerID AccountID) (Money, error)
	HasUnsettledFines(ctx context.Context, ownerID AccountID) (bool, error)
}
