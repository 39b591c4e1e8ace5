package library

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"
)

// In-memory store implementations backing the service tests.

type memCatalogStore struct {
	books []Book
}

func newMemCatalogStore() *memCatalogStore {
	return &memCatalogStore{}
}

func (store *memCatalogStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore CatalogStore) error) error {
	return fn(ctx, store)
}

func (store *memCatalogStore) InsertBook(_ context.Context, book Book) error {
	for _, existing := range store.books {
		if existing.ID == book.ID {
			return ErrDuplicateBook
		}
	}
	store.books = append(store.books, book)
	return nil
}

func (store *memCatalogStore) GetBook(_ context.Context, bookID BookID) (Book, error) {
	for _, book := range store.books {
		if book.ID == bookID {
			return book, nil
		}
	}
	return Book{}, ErrBookNotFound
}

func (store *memCatalogStore) UpdateBook(_ context.Context, book Book) error {
	for index, existing := range store.books {
		if existing.ID == book.ID {
			store.books[index] = book
			return nil
		}
	}
	return ErrBookNotFound
}

func (store *memCatalogStore) DeleteBook(_ context.Context, bookID BookID) error {
	for index, existing := range store.books {
		if existing.ID == bookID {
			store.books = append(store.books[:index], store.books[index+1:]...)
			return nil
		}
	}
	return ErrBookNotFound
}

func (store *memCatalogStore) ListBooks(_ context.Context) ([]Book, error) {
	listed := make([]Book, len(store.books))
	copy(listed, store.books)
	return listed, nil
}

func (store *memCatalogStore) AdjustAvailableCopies(_ context.Context, bookID BookID, delta int) error {
	for index, existing := range store.books {
		if existing.ID == bookID {
			if existing.AvailableCopies+delta < 0 {
				return ErrBookNotAvailable
			}
			store.books[index].AvailableCopies += delta
			return nil
		}
	}
	return ErrBookNotFound
}

type memDirectoryStore struct {
	accounts []Account
}

func newMemDirectoryStore() *memDirectoryStore {
	return &memDirectoryStore{}
}

func (store *memDirectoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore DirectoryStore) error) error {
	return fn(ctx, store)
}

func (store *memDirectoryStore) InsertAccount(_ context.Context, account Account) error {
	for _, existing := range store.accounts {
		if existing.ID == account.ID {
			return ErrDuplicateAccount
		}
	}
	store.accounts = append(store.accounts, account)
	return nil
}

func (store *memDirectoryStore) GetAccount(_ context.Context, accountID AccountID) (Account, error) {
	for _, account := range store.accounts {
		if account.ID == accountID {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (store *memDirectoryStore) UpdateAccount(_ context.Context, account Account) error {
	for index, existing := range store.accounts {
		if existing.ID == account.ID {
			store.accounts[index] = account
			return nil
		}
	}
	return ErrAccountNotFound
}

func (store *memDirectoryStore) DeleteAccount(_ context.Context, accountID AccountID) error {
	for index, existing := range store.accounts {
		if existing.ID == accountID {
			store.accounts = append(store.accounts[:index], store.accounts[index+1:]...)
			return nil
		}
	}
	return ErrAccountNotFound
}

func (store *memDirectoryStore) ListAccounts(_ context.Context) ([]Account, error) {
	listed := make([]Account, len(store.accounts))
	copy(listed, store.accounts)
	return listed, nil
}

type memLedgerStore struct {
	loans  []Loan
	fines  []Fine
	nextID int
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{}
}

func (store *memLedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore LedgerStore) error) error {
	return fn(ctx, store)
}

func (store *memLedgerStore) nextKey(prefix string) string {
	store.nextID++
	return fmt.Sprintf("%s-%d", prefix, store.nextID)
}

func (store *memLedgerStore) InsertLoan(_ context.Context, loan Loan) error {
	if loan.LoanID == "" {
		loan.LoanID = store.nextKey("loan")
	}
	store.loans = append(store.loans, loan)
	return nil
}

func (store *memLedgerStore) UpdateLoan(_ context.Context, loan Loan) error {
	for index, existing := range store.loans {
		if existing.LoanID == loan.LoanID {
			store.loans[index] = loan
			return nil
		}
	}
	return ErrNoOpenLoan
}

func (store *memLedgerStore) GetOpenLoan(_ context.Context, borrowerID AccountID, bookID BookID) (Loan, error) {
	for _, loan := range store.loans {
		if loan.BorrowerID == borrowerID && loan.BookID == bookID && loan.Open() {
			return loan, nil
		}
	}
	return Loan{}, ErrNoOpenLoan
}

func (store *memLedgerStore) GetOpenLoanForBook(_ context.Context, bookID BookID) (Loan, error) {
	for _, loan := range store.loans {
		if loan.BookID == bookID && loan.Open() {
			return loan, nil
		}
	}
	return Loan{}, ErrNoOpenLoan
}

func (store *memLedgerStore) CountOpenLoans(_ context.Context, borrowerID AccountID) (int, error) {
	count := 0
	for _, loan := range store.loans {
		if loan.BorrowerID == borrowerID && loan.Open() {
			count++
		}
	}
	return count, nil
}

func (store *memLedgerStore) ListOpenLoans(_ context.Context, borrowerID AccountID) ([]Loan, error) {
	open := make([]Loan, 0)
	for _, loan := range store.loans {
		if loan.BorrowerID == borrowerID && loan.Open() {
			open = append(open, loan)
		}
	}
	return open, nil
}

func (store *memLedgerStore) ListLoansByBorrower(_ context.Context, borrowerID AccountID) ([]Loan, error) {
	history := make([]Loan, 0)
	for _, loan := range store.loans {
		if loan.BorrowerID == borrowerID {
			history = append(history, loan)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].BorrowedOn.After(history[j].BorrowedOn)
	})
	return history, nil
}

func (store *memLedgerStore) ListOpenLoansDueBefore(_ context.Context, cutoff Date) ([]Loan, error) {
	due := make([]Loan, 0)
	for _, loan := range store.loans {
		if loan.Open() && loan.DueOn.Before(cutoff) {
			due = append(due, loan)
		}
	}
	return due, nil
}

func (store *memLedgerStore) HasOpenLoanOnBook(_ context.Context, bookID BookID) (bool, error) {
	for _, loan := range store.loans {
		if loan.BookID == bookID && loan.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (store *memLedgerStore) CountLoansPerBook(_ context.Context) (map[BookID]int, error) {
	counts := make(map[BookID]int)
	for _, loan := range store.loans {
		counts[loan.BookID]++
	}
	return counts, nil
}

func (store *memLedgerStore) InsertFine(_ context.Context, fine Fine) error {
	if fine.FineID == "" {
		fine.FineID = store.nextKey("fine")
	}
	store.fines = append(store.fines, fine)
	return nil
}

func (store *memLedgerStore) GetUnsettledFine(_ context.Context, ownerID AccountID, bookID BookID, cause FineCause) (Fine, error) {
	for _, fine := range store.fines {
		if fine.OwnerID == ownerID && fine.BookID == bookID && fine.Cause == cause && !fine.Settled {
			return fine, nil
		}
	}
	return Fine{}, ErrFineNotFound
}

func (store *memLedgerStore) MarkFineSettled(_ context.Context, fineID string) error {
	for index, fine := range store.fines {
		if fine.FineID == fineID {
			store.fines[index].Settled = true
			return nil
		}
	}
	return ErrFineNotFound
}

func (store *memLedgerStore) ListUnsettledFines(_ context.Context, ownerID AccountID) ([]Fine, error) {
	unsettled := make([]Fine, 0)
	for _, fine := range store.fines {
		if fine.OwnerID == ownerID && !fine.Settled {
			unsettled = append(unsettled, fine)
		}
	}
	return unsettled, nil
}

func (store *memLedgerStore) ListFinesByOwner(_ context.Context, ownerID AccountID) ([]Fine, error) {
	owned := make([]Fine, 0)
	for _, fine := range store.fines {
		if fine.OwnerID == ownerID {
			owned = append(owned, fine)
		}
	}
	sortFinesNewestFirst(owned)
	return owned, nil
}

func (store *memLedgerStore) ListAllFines(_ context.Context) ([]Fine, error) {
	listed := make([]Fine, len(store.fines))
	copy(listed, store.fines)
	sortFinesNewestFirst(listed)
	return listed, nil
}

func (store *memLedgerStore) ListAllUnsettledFines(_ context.Context) ([]Fine, error) {
	unsettled := make([]Fine, 0)
	for _, fine := range store.fines {
		if !fine.Settled {
			unsettled = append(unsettled, fine)
		}
	}
	sortFinesNewestFirst(unsettled)
	return unsettled, nil
}

func (store *memLedgerStore) SumUnsettledFines(ctx context.Context, ownerID AccountID) (Money, error) {
	unsettled, err := store.ListUnsettledFines(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	var total Money
	for _, fine := range unsettled {
		total += fine.Amount
	}
	return total, nil
}

func (store *memLedgerStore) HasUnsettledFines(ctx context.Context, ownerID AccountID) (bool, error) {
	unsettled, err := store.ListUnsettledFines(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return len(unsettled) > 0, nil
}

func sortFinesNewestFirst(fines []Fine) {
	sort.SliceStable(fines, func(i, j int) bool {
		return fines[i].IssuedOn.After(fines[j].IssuedOn)
	})
}

// Shared test fixture helpers.

type fixture struct {
	catalogStore   *memCatalogStore
	directoryStore *memDirectoryStore
	ledgerStore    *memLedgerStore
	catalog        *Catalog
	directory      *Directory
	ledger         *Ledger
	reports        *Reports
	today          Date
}

func newFixture(test *testing.T) *fixture {
	test.Helper()
	today := NewDate(2026, time.March, 1)
	return newFixtureAt(test, today)
}

func newFixtureAt(test *testing.T, today Date) *fixture {
	test.Helper()
	catalogStore := newMemCatalogStore()
	directoryStore := newMemDirectoryStore()
	ledgerStore := newMemLedgerStore()
	catalog, err := NewCatalog(catalogStore)
	if err != nil {
		test.Fatalf("new catalog: %v", err)
	}
	directory, err := NewDirectory(directoryStore)
	if err != nil {
		test.Fatalf("new directory: %v", err)
	}
	ledger, err := NewLedger(ledgerStore, catalog, directory, func() Date { return today })
	if err != nil {
		test.Fatalf("new ledger: %v", err)
	}
	catalog.BindLoanActivity(ledger)
	directory.BindPromotionGate(ledger)
	reports, err := NewReports(catalog, directory, ledger)
	if err != nil {
		test.Fatalf("new reports: %v", err)
	}
	return &fixture{
		catalogStore:   catalogStore,
		directoryStore: directoryStore,
		ledgerStore:    ledgerStore,
		catalog:        catalog,
		directory:      directory,
		ledger:         ledger,
		reports:        reports,
		today:          today,
	}
}

func mustBookID(test *testing.T, raw string) BookID {
	test.Helper()
	bookID, err := NewBookID(raw)
	if err != nil {
		test.Fatalf("book id %q: %v", raw, err)
	}
	return bookID
}

func mustAccountID(test *testing.T, raw string) AccountID {
	test.Helper()
	accountID, err := NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id %q: %v", raw, err)
	}
	return accountID
}

func (f *fixture) mustAddBook(test *testing.T, id string, title string, author string, copies int, costCents int64) Book {
	test.Helper()
	book := Book{
		ID:              mustBookID(test, id),
		Title:           title,
		Author:          author,
		AvailableCopies: copies,
		UnitCost:        Money(costCents),
	}
	if err := f.catalog.Add(context.Background(), book); err != nil {
		test.Fatalf("add book %s: %v", id, err)
	}
	return book
}

func (f *fixture) mustRegister(test *testing.T, id string, role Role) Account {
	test.Helper()
	account, err := f.directory.Register(context.Background(), mustAccountID(test, id), id, "secret-"+id, role)
	if err != nil {
		test.Fatalf("register %s: %v", id, err)
	}
	return account
}

func (f *fixture) mustBorrow(test *testing.T, borrower string, book string) Loan {
	test.Helper()
	loan, err := f.ledger.Borrow(context.Background(), mustAccountID(test, borrower), mustBookID(test, book))
	if err != nil {
		test.Fatalf("borrow %s/%s: %v", borrower, book, err)
	}
	return loan
}
