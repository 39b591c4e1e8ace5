package library

import (
	"context"
	"testing"
	"time"
)

func TestMostBorrowedRanksByLoanCount(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 5, 280000)
	f.mustAddBook(test, "978-2", "Effective Java", "Joshua Bloch", 5, 250000)
	f.mustRegister(test, "first@example.com", RoleBorrower)
	f.mustRegister(test, "second@example.com", RoleBorrower)

	// 978-1 circulates twice, 978-2 once.
	f.mustBorrow(test, "first@example.com", "978-1")
	if _, err := f.ledger.ReturnLoan(context.Background(), mustAccountID(test, "first@example.com"), mustBookID(test, "978-1"), f.today); err != nil {
		test.Fatalf("return: %v", err)
	}
	f.mustBorrow(test, "second@example.com", "978-1")
	f.mustBorrow(test, "first@example.com", "978-2")

	ranked, err := f.reports.MostBorrowed(context.Background())
	if err != nil {
		test.Fatalf("most borrowed: %v", err)
	}
	if len(ranked) != 2 {
		test.Fatalf("expected 2 ranked books, got %d", len(ranked))
	}
	if ranked[0].Book.ID != mustBookID(test, "978-1") || ranked[0].Times != 2 {
		test.Fatalf("unexpected top entry: %+v", ranked[0])
	}
	if ranked[1].Times != 1 {
		test.Fatalf("unexpected second entry: %+v", ranked[1])
	}
}

func TestNeverBorrowed(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 5, 280000)
	f.mustAddBook(test, "978-2", "Effective Java", "Joshua Bloch", 5, 250000)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	f.mustBorrow(test, "reader@example.com", "978-1")

	never, err := f.reports.NeverBorrowed(context.Background())
	if err != nil {
		test.Fatalf("never borrowed: %v", err)
	}
	if len(never) != 1 || never[0].ID != mustBookID(test, "978-2") {
		test.Fatalf("unexpected never-borrowed set: %+v", never)
	}
}

func TestOutstandingAsOfAnnotatesDaysOverdue(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 5, 280000)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	loan := f.mustBorrow(test, "reader@example.com", "978-1")

	asOf := loan.DueOn.AddDays(4)
	outstanding, err := f.reports.OutstandingAsOf(context.Background(), asOf)
	if err != nil {
		test.Fatalf("outstanding: %v", err)
	}
	if len(outstanding) != 1 {
		test.Fatalf("expected one outstanding loan, got %d", len(outstanding))
	}
	if outstanding[0].DaysOverdue != 4 {
		test.Fatalf("expected 4 days overdue, got %d", outstanding[0].DaysOverdue)
	}
	if outstanding[0].Borrower.ID != mustAccountID(test, "reader@example.com") {
		test.Fatalf("unexpected borrower: %+v", outstanding[0].Borrower)
	}

	// On the due date itself the loan is not yet outstanding.
	none, err := f.reports.OutstandingAsOf(context.Background(), loan.DueOn)
	if err != nil {
		test.Fatalf("outstanding at due date: %v", err)
	}
	if len(none) != 0 {
		test.Fatalf("expected none outstanding, got %d", len(none))
	}
}

func TestBookStatusShowsHolderAndDueDateAsExpectedReturn(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 1, 280000)
	f.mustRegister(test, "reader@example.com", RoleBorrower)

	status, err := f.reports.BookStatus(context.Background(), mustBookID(test, "978-1"))
	if err != nil {
		test.Fatalf("status: %v", err)
	}
	if status.Borrowed {
		test.Fatalf("expected available status")
	}

	loan := f.mustBorrow(test, "reader@example.com", "978-1")
	status, err = f.reports.BookStatus(context.Background(), mustBookID(test, "978-1"))
	if err != nil {
		test.Fatalf("status: %v", err)
	}
	if !status.Borrowed || status.Holder.ID != mustAccountID(test, "reader@example.com") {
		test.Fatalf("unexpected status: %+v", status)
	}
	// The legacy report prints the due date as the expected return even when
	// the loan is already overdue.
	if !status.ExpectedReturn.Equal(loan.DueOn) {
		test.Fatalf("expected return %s, got %s", loan.DueOn.ISO(), status.ExpectedReturn.ISO())
	}
}

func TestBorrowerHistoriesNewestFirst(test *testing.T) {
	test.Parallel()
	f := newFixtureAt(test, NewDate(2026, time.January, 10))
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 5, 280000)
	f.mustAddBook(test, "978-2", "Effective Java", "Joshua Bloch", 5, 250000)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	reader := mustAccountID(test, "reader@example.com")

	f.mustBorrow(test, "reader@example.com", "978-1")
	// Second loan starts a week later.
	f.today = NewDate(2026, time.January, 17)
	later, err := NewLedger(f.ledgerStore, f.catalog, f.directory, func() Date { return f.today })
	if err != nil {
		test.Fatalf("new ledger: %v", err)
	}
	if _, err := later.Borrow(context.Background(), reader, mustBookID(test, "978-2")); err != nil {
		test.Fatalf("borrow later: %v", err)
	}

	history, err := f.reports.BorrowerLoanHistory(context.Background(), reader)
	if err != nil {
		test.Fatalf("loan history: %v", err)
	}
	if len(history) != 2 {
		test.Fatalf("expected 2 loans, got %d", len(history))
	}
	if history[0].Book.ID != mustBookID(test, "978-2") {
		test.Fatalf("expected newest loan first, got %s", history[0].Book.ID.String())
	}
}

func TestBorrowerFineHistoryTotalsAndWallet(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	reader := mustAccountID(test, "reader@example.com")
	f.mustFine(test, "reader@example.com")
	f.mustFine(test, "reader@example.com")
	if err := f.ledger.SettleOneWithCash(context.Background(), reader, CardFineBookID(), FineLostCard); err != nil {
		test.Fatalf("settle one: %v", err)
	}
	if err := f.directory.CreditWallet(context.Background(), reader, 700); err != nil {
		test.Fatalf("credit wallet: %v", err)
	}

	report, err := f.reports.BorrowerFineHistory(context.Background(), reader)
	if err != nil {
		test.Fatalf("fine history: %v", err)
	}
	if len(report.Entries) != 2 {
		test.Fatalf("expected 2 fines, got %d", len(report.Entries))
	}
	if report.TotalUnsettled != 1000 {
		test.Fatalf("expected 1000 outstanding, got %d", report.TotalUnsettled)
	}
	if report.WalletBalance != 700 {
		test.Fatalf("expected wallet 700, got %d", report.WalletBalance)
	}
	if report.Entries[0].BookTitle != "Membership Card" {
		test.Fatalf("expected card label, got %q", report.Entries[0].BookTitle)
	}
}

func TestUnpaidFinesAcrossBorrowers(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "first@example.com", RoleBorrower)
	f.mustRegister(test, "second@example.com", RoleBorrower)
	f.mustFine(test, "first@example.com")
	f.mustFine(test, "second@example.com")

	report, err := f.reports.UnpaidFines(context.Background())
	if err != nil {
		test.Fatalf("unpaid fines: %v", err)
	}
	if len(report.Entries) != 2 {
		test.Fatalf("expected 2 entries, got %d", len(report.Entries))
	}
	if report.Total != 2000 {
		test.Fatalf("expected total 2000, got %d", report.Total)
	}
}
