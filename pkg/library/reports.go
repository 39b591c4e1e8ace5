package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const mostBorrowedLimit = 10

// Reports derives read-only summaries over the catalog, directory and ledger.
// Nothing here mutates state.
type Reports struct {
	catalog   *Catalog
	directory *Directory
	ledger    *Ledger
}

// NewReports wires a reporting view.
func NewReports(catalog *Catalog, directory *Directory, ledger *Ledger) (*Reports, error) {
	if catalog == nil || directory == nil || ledger == nil {
		return nil, fmt.Errorf("%w: reports require catalog, directory and ledger", ErrInvalidServiceConfig)
	}
	return &Reports{catalog: catalog, directory: directory, ledger: ledger}, nil
}

// BorrowCount pairs a book with its all-time loan count.
type BorrowCount struct {
	Book  Book
	Times int
}

// OutstandingLoan annotates an overdue open loan with its context.
type OutstandingLoan struct {
	Loan        Loan
	Book        Book
	Borrower    Account
	DaysOverdue int
}

// BookStatus describes a book's current circulation state.
type BookStatus struct {
	Book     Book
	Borrowed bool
	Loan     Loan
	Holder   Account
	// ExpectedReturn mirrors the legacy report, which prints the due date
	// here even for overdue loans. Kept as-is pending a stakeholder decision.
	ExpectedReturn Date
}

// LoanHistoryEntry pairs a loan with its book for display.
type LoanHistoryEntry struct {
	Loan Loan
	Book Book
}

// FineHistoryEntry pairs a fine with a display label for its subject.
type FineHistoryEntry struct {
	Fine      Fine
	BookTitle string
	Owner     Account
}

// FineHistoryReport is a borrower's fine history with balance context.
type FineHistoryReport struct {
	Entries        []FineHistoryEntry
	TotalUnsettled Money
	WalletBalance  Money
}

// UnpaidFinesReport aggregates all unsettled fines across borrowers.
type UnpaidFinesReport struct {
	Entries []FineHistoryEntry
	Total   Money
}

// MostBorrowed returns the ten most borrowed books, descending by loan count.
func (reports *Reports) MostBorrowed(ctx context.Context) ([]BorrowCount, error) {
	counts, err := reports.ledger.BorrowCounts(ctx)
	if err != nil {
		return nil, err
	}
	ranked := make([]BorrowCount, 0, len(counts))
	for bookID, times := range counts {
		book, err := reports.catalog.Get(ctx, bookID)
		if err != nil {
			if errors.Is(err, ErrBookNotFound) {
				continue
			}
			return nil, err
		}
		ranked = append(ranked, BorrowCount{Book: book, Times: times})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Times > ranked[j].Times
	})
	if len(ranked) > mostBorrowedLimit {
		ranked = ranked[:mostBorrowedLimit]
	}
	return ranked, nil
}

// NeverBorrowed returns catalog books with no loan history, in title order.
func (reports *Reports) NeverBorrowed(ctx context.Context) ([]Book, error) {
	counts, err := reports.ledger.BorrowCounts(ctx)
	if err != nil {
		return nil, err
	}
	books, err := reports.catalog.SortedByTitle(ctx)
	if err != nil {
		return nil, err
	}
	never := make([]Book, 0, len(books))
	for _, book := range books {
		if _, borrowed := counts[book.ID]; !borrowed {
			never = append(never, book)
		}
	}
	return never, nil
}

// OutstandingAsOf lists open loans already past due at the given date,
// annotated with days overdue.
func (reports *Reports) OutstandingAsOf(ctx context.Context, asOf Date) ([]OutstandingLoan, error) {
	loans, err := reports.ledger.OutstandingAsOf(ctx, asOf)
	if err != nil {
		return nil, err
	}
	outstanding := make([]OutstandingLoan, 0, len(loans))
	for _, loan := range loans {
		book, err := reports.catalog.Get(ctx, loan.BookID)
		if err != nil {
			return nil, err
		}
		borrower, err := reports.directory.Get(ctx, loan.BorrowerID)
		if err != nil {
			return nil, err
		}
		outstanding = append(outstanding, OutstandingLoan{
			Loan:        loan,
			Book:        book,
			Borrower:    borrower,
			DaysOverdue: asOf.DaysSince(loan.DueOn),
		})
	}
	return outstanding, nil
}

// BookStatus reports whether a book is on the shelf or who holds it.
func (reports *Reports) BookStatus(ctx context.Context, bookID BookID) (BookStatus, error) {
	book, err := reports.catalog.Get(ctx, bookID)
	if err != nil {
		return BookStatus{}, err
	}
	loan, err := reports.ledger.OpenLoanForBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, ErrNoOpenLoan) {
			return BookStatus{Book: book}, nil
		}
		return BookStatus{}, err
	}
	holder, err := reports.directory.Get(ctx, loan.BorrowerID)
	if err != nil {
		return BookStatus{}, err
	}
	return BookStatus{
		Book:           book,
		Borrowed:       true,
		Loan:           loan,
		Holder:         holder,
		ExpectedReturn: loan.DueOn,
	}, nil
}

// BorrowerLoanHistory lists a borrower's loans, newest first, with the books.
func (reports *Reports) BorrowerLoanHistory(ctx context.Context, borrowerID AccountID) ([]LoanHistoryEntry, error) {
	loans, err := reports.ledger.LoanHistory(ctx, borrowerID)
	if err != nil {
		return nil, err
	}
	entries := make([]LoanHistoryEntry, 0, len(loans))
	for _, loan := range loans {
		book, err := reports.catalog.Get(ctx, loan.BookID)
		if err != nil {
			if errors.Is(err, ErrBookNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, LoanHistoryEntry{Loan: loan, Book: book})
	}
	return entries, nil
}

// BorrowerFineHistory lists a borrower's fines, newest first, with the
// unsettled total and current wallet balance.
func (reports *Reports) BorrowerFineHistory(ctx context.Context, ownerID AccountID) (FineHistoryReport, error) {
	fines, err := reports.ledger.FineHistory(ctx, ownerID)
	if err != nil {
		return FineHistoryReport{}, err
	}
	owner, err := reports.directory.Get(ctx, ownerID)
	if err != nil {
		return FineHistoryReport{}, err
	}
	report := FineHistoryReport{WalletBalance: owner.WalletBalance}
	for _, fine := range fines {
		entry, err := reports.fineEntry(ctx, fine, owner)
		if err != nil {
			return FineHistoryReport{}, err
		}
		report.Entries = append(report.Entries, entry)
		if !fine.Settled {
			report.TotalUnsettled += fine.Amount
		}
	}
	return report, nil
}

// AllFines lists every fine on record, newest first.
func (reports *Reports) AllFines(ctx context.Context) ([]FineHistoryEntry, error) {
	fines, err := reports.ledger.AllFines(ctx)
	if err != nil {
		return nil, err
	}
	return reports.fineEntries(ctx, fines)
}

// UnpaidFines aggregates every unsettled fine with the grand total owed.
func (reports *Reports) UnpaidFines(ctx context.Context) (UnpaidFinesReport, error) {
	fines, err := reports.ledger.AllUnsettledFines(ctx)
	if err != nil {
		return UnpaidFinesReport{}, err
	}
	entries, err := reports.fineEntries(ctx, fines)
	if err != nil {
		return UnpaidFinesReport{}, err
	}
	report := UnpaidFinesReport{Entries: entries}
	for _, entry := range entries {
		report.Total += entry.Fine.Amount
	}
	return report, nil
}

func (reports *Reports) fineEntries(ctx context.Context, fines []Fine) ([]FineHistoryEntry, error) {
	entries := make([]FineHistoryEntry, 0, len(fines))
	for _, fine := range fines {
		owner, err := reports.directory.Get(ctx, fine.OwnerID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		entry, err := reports.fineEntry(ctx, fine, owner)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (reports *Reports) fineEntry(ctx context.Context, fine Fine, owner Account) (FineHistoryEntry, error) {
	title := "Membership Card"
	if !fine.BookID.IsCardSentinel() {
		book, err := reports.catalog.Get(ctx, fine.BookID)
		switch {
		case err == nil:
			title = book.Title
		case errors.Is(err, ErrBookNotFound):
			title = strings.TrimSpace(fine.BookID.String())
		default:
			return FineHistoryEntry{}, err
		}
	}
	return FineHistoryEntry{Fine: fine, BookTitle: title, Owner: owner}, nil
}
