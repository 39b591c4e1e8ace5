package library

import "context"

// Read-only projections over the loan and fine history, consumed by the
// reporting layer.

// BorrowCounts returns the all-time number of loans per book.
func (ledger *Ledger) BorrowCounts(ctx context.Context) (map[BookID]int, error) {
	return ledger.store.CountLoansPerBook(ctx)
}

// OutstandingAsOf lists open loans whose due date falls before the cutoff.
func (ledger *Ledger) OutstandingAsOf(ctx context.Context, cutoff Date) ([]Loan, error) {
	return ledger.store.ListOpenLoansDueBefore(ctx, cutoff)
}

// OpenLoanForBook returns the open loan on the book regardless of borrower;
// fails with ErrNoOpenLoan when the book sits on the shelf.
func (ledger *Ledger) OpenLoanForBook(ctx context.Context, bookID BookID) (Loan, error) {
	return ledger.store.GetOpenLoanForBook(ctx, bookID)
}

// AllFines lists every fine on record, newest first.
func (ledger *Ledger) AllFines(ctx context.Context) ([]Fine, error) {
	return ledger.store.ListAllFines(ctx)
}

// AllUnsettledFines lists every unsettled fine across owners, newest first.
func (ledger *Ledger) AllUnsettledFines(ctx context.Context) ([]Fine, error) {
	return ledger.store.ListAllUnsettledFines(ctx)
}
