package library

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Shelf is the catalog contract the Ledger mutates copy counts through.
type Shelf interface {
	Get(ctx context.Context, bookID BookID) (Book, error)
	TakeCopy(ctx context.Context, bookID BookID) error
	ReturnCopy(ctx context.Context, bookID BookID) error
}

// WalletAccess is the directory contract the Ledger settles fines through.
type WalletAccess interface {
	DebitWallet(ctx context.Context, accountID AccountID, amount Money) error
	CreditWallet(ctx context.Context, accountID AccountID, amount Money) error
}

// Ledger owns the loan and fine history and implements every borrowing,
// return, extension and settlement rule. A single mutex serializes mutating
// operations: the borrow guard chain is not atomic against interleaved
// mutation without it.
type Ledger struct {
	store     LedgerStore
	shelf     Shelf
	wallet    WalletAccess
	nowFn     func() Date
	logger    OperationLogger
	mutations sync.Mutex
}

// NewLedger wires a Ledger.
func NewLedger(store LedgerStore, shelf Shelf, wallet WalletAccess, now func() Date, options ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: ledger store dependency is nil", ErrInvalidServiceConfig)
	}
	if shelf == nil {
		return nil, fmt.Errorf("%w: shelf dependency is nil", ErrInvalidServiceConfig)
	}
	if wallet == nil {
		return nil, fmt.Errorf("%w: wallet dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	ledger := &Ledger{store: store, shelf: shelf, wallet: wallet, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(ledger)
		}
	}
	return ledger, nil
}

// Borrow runs the full guard chain and opens a loan. The guards are ordered;
// the first failing one wins: ErrMaxBooksReached, ErrBookNotAvailable,
// ErrAlreadyBorrowed, ErrHasUnpaidFines.
func (ledger *Ledger) Borrow(ctx context.Context, borrowerID AccountID, bookID BookID) (Loan, error) {
	return ledger.borrow(ctx, borrowerID, bookID, true)
}

// BorrowIgnoringFines is the retry-after-paying variant: identical to Borrow
// except the unpaid-fines guard is skipped.
func (ledger *Ledger) BorrowIgnoringFines(ctx context.Context, borrowerID AccountID, bookID BookID) (Loan, error) {
	return ledger.borrow(ctx, borrowerID, bookID, false)
}

func (ledger *Ledger) borrow(ctx context.Context, borrowerID AccountID, bookID BookID, enforceFines bool) (Loan, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var loan Loan
	operationError := func() error {
		openCount, err := ledger.store.CountOpenLoans(ctx, borrowerID)
		if err != nil {
			return err
		}
		if openCount >= maxOpenLoans {
			return ErrMaxBooksReached
		}
		book, err := ledger.shelf.Get(ctx, bookID)
		if err != nil {
			if errors.Is(err, ErrBookNotFound) {
				return ErrBookNotAvailable
			}
			return err
		}
		if book.AvailableCopies <= 0 {
			return ErrBookNotAvailable
		}
		if _, err := ledger.store.GetOpenLoan(ctx, borrowerID, bookID); err == nil {
			return ErrAlreadyBorrowed
		} else if !errors.Is(err, ErrNoOpenLoan) {
			return err
		}
		if enforceFines {
			unpaid, err := ledger.store.HasUnsettledFines(ctx, borrowerID)
			if err != nil {
				return err
			}
			if unpaid {
				return ErrHasUnpaidFines
			}
		}
		today := ledger.nowFn()
		loan = Loan{
			BorrowerID: borrowerID,
			BookID:     bookID,
			BorrowedOn: today,
			DueOn:      today.AddDays(loanPeriodDays),
			Status:     LoanOpen,
		}
		if err := ledger.shelf.TakeCopy(ctx, bookID); err != nil {
			return err
		}
		if err := ledger.store.InsertLoan(ctx, loan); err != nil {
			_ = ledger.shelf.ReturnCopy(ctx, bookID)
			return err
		}
		return nil
	}()
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationBorrow,
		ActorID:   borrowerID,
		BookID:    bookID,
		Error:     operationError,
	})
	if operationError != nil {
		return Loan{}, operationError
	}
	return loan, nil
}

// ReturnReceipt reports the outcome of a return, including any overdue fine
// the return spawned.
type ReturnReceipt struct {
	Loan        Loan
	FineIssued  bool
	FineAmount  Money
	DaysOverdue int
}

// ReturnLoan closes the open loan for the pair and restores the copy. The
// caller supplies returnedOn; backdated returns are supported and the ledger
// does not re-derive "today". A return past the due date spawns an overdue
// fine.
func (ledger *Ledger) ReturnLoan(ctx context.Context, borrowerID AccountID, bookID BookID, returnedOn Date) (ReturnReceipt, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var receipt ReturnReceipt
	operationError := ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
		loan, err := txStore.GetOpenLoan(ctx, borrowerID, bookID)
		if err != nil {
			return err
		}
		if returnedOn.Before(loan.BorrowedOn) {
			return fmt.Errorf("%w: returned before %s", ErrInvalidDate, loan.BorrowedOn.ISO())
		}
		closedOn := returnedOn
		loan.ReturnedOn = &closedOn
		loan.Status = LoanReturned
		if err := txStore.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		receipt = ReturnReceipt{Loan: loan}
		if returnedOn.After(loan.DueOn) {
			book, err := ledger.shelf.Get(ctx, bookID)
			if err != nil {
				return err
			}
			daysOverdue := returnedOn.DaysSince(loan.DueOn)
			amount := OverdueFine(daysOverdue, book.UnitCost)
			fine := Fine{
				OwnerID:  borrowerID,
				BookID:   bookID,
				Amount:   amount,
				Cause:    FineOverdue,
				IssuedOn: ledger.nowFn(),
			}
			if err := txStore.InsertFine(ctx, fine); err != nil {
				return err
			}
			receipt.FineIssued = true
			receipt.FineAmount = amount
			receipt.DaysOverdue = daysOverdue
		}
		return nil
	})
	if operationError == nil {
		operationError = ledger.shelf.ReturnCopy(ctx, bookID)
	}
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationReturn,
		ActorID:   borrowerID,
		BookID:    bookID,
		Amount:    receipt.FineAmount,
		Error:     operationError,
	})
	if operationError != nil {
		return ReturnReceipt{}, operationError
	}
	return receipt, nil
}

// ExtendLoan pushes the due date out by one loan period, at most twice per
// loan. The third attempt fails with ErrExtensionLimitReached and leaves the
// loan untouched.
func (ledger *Ledger) ExtendLoan(ctx context.Context, borrowerID AccountID, bookID BookID) (Loan, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var extended Loan
	operationError := ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
		loan, err := txStore.GetOpenLoan(ctx, borrowerID, bookID)
		if err != nil {
			return err
		}
		if loan.ExtensionCount >= maxExtensions {
			return ErrExtensionLimitReached
		}
		loan.DueOn = loan.DueOn.AddDays(loanPeriodDays)
		loan.ExtensionCount++
		if err := txStore.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		extended = loan
		return nil
	})
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationExtend,
		ActorID:   borrowerID,
		BookID:    bookID,
		Error:     operationError,
	})
	if operationError != nil {
		return Loan{}, operationError
	}
	return extended, nil
}

// ReportLost closes the open loan as lost and fines the borrower half the
// replacement cost. The copy is considered destroyed, so availability is not
// restored.
func (ledger *Ledger) ReportLost(ctx context.Context, borrowerID AccountID, bookID BookID) (Fine, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var fine Fine
	operationError := ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
		loan, err := txStore.GetOpenLoan(ctx, borrowerID, bookID)
		if err != nil {
			return err
		}
		book, err := ledger.shelf.Get(ctx, bookID)
		if err != nil {
			return err
		}
		today := ledger.nowFn()
		loan.ReturnedOn = &today
		loan.Status = LoanLost
		if err := txStore.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		fine = Fine{
			OwnerID:  borrowerID,
			BookID:   bookID,
			Amount:   LostBookFine(book.UnitCost),
			Cause:    FineLostBook,
			IssuedOn: today,
		}
		return txStore.InsertFine(ctx, fine)
	})
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationReportLost,
		ActorID:   borrowerID,
		BookID:    bookID,
		Amount:    fine.Amount,
		Error:     operationError,
	})
	if operationError != nil {
		return Fine{}, operationError
	}
	return fine, nil
}

// ReportLostCard unconditionally fines the borrower the flat lost-card amount.
func (ledger *Ledger) ReportLostCard(ctx context.Context, borrowerID AccountID) (Fine, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	fine := Fine{
		OwnerID:  borrowerID,
		BookID:   CardFineBookID(),
		Amount:   lostCardFineCents,
		Cause:    FineLostCard,
		IssuedOn: ledger.nowFn(),
	}
	operationError := ledger.store.InsertFine(ctx, fine)
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationReportLostCard,
		ActorID:   borrowerID,
		Amount:    fine.Amount,
		Error:     operationError,
	})
	if operationError != nil {
		return Fine{}, operationError
	}
	return fine, nil
}

// SettleOneWithCash marks the unique unsettled fine matching owner, book and
// cause as settled; fails with ErrFineNotFound.
func (ledger *Ledger) SettleOneWithCash(ctx context.Context, ownerID AccountID, bookID BookID, cause FineCause) error {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	operationError := ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
		fine, err := txStore.GetUnsettledFine(ctx, ownerID, bookID, cause)
		if err != nil {
			return err
		}
		return txStore.MarkFineSettled(ctx, fine.FineID)
	})
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationSettleOne,
		ActorID:   ownerID,
		BookID:    bookID,
		Error:     operationError,
	})
	return operationError
}

// SettleAllWithCash marks every unsettled fine for the owner as settled and
// returns the total; fails with ErrNothingToSettle when there are none.
func (ledger *Ledger) SettleAllWithCash(ctx context.Context, ownerID AccountID) (Money, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var total Money
	operationError := ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
		settled, err := settleAll(ctx, txStore, ownerID)
		if err != nil {
			return err
		}
		total = settled
		return nil
	})
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationSettleAllCash,
		ActorID:   ownerID,
		Amount:    total,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return total, nil
}

// SettleAllWithWallet debits the summed total from the owner's wallet and
// marks every unsettled fine as settled. The settlement is atomic from the
// caller's view: ErrInsufficientFunds leaves every fine unsettled, and a
// failure after the debit credits the wallet back.
func (ledger *Ledger) SettleAllWithWallet(ctx context.Context, ownerID AccountID) (Money, error) {
	ledger.mutations.Lock()
	defer ledger.mutations.Unlock()

	var total Money
	operationError := func() error {
		unsettled, err := ledger.store.ListUnsettledFines(ctx, ownerID)
		if err != nil {
			return err
		}
		if len(unsettled) == 0 {
			return ErrNothingToSettle
		}
		for _, fine := range unsettled {
			total += fine.Amount
		}
		if err := ledger.wallet.DebitWallet(ctx, ownerID, total); err != nil {
			return err
		}
		err = ledger.store.WithTx(ctx, func(ctx context.Context, txStore LedgerStore) error {
			for _, fine := range unsettled {
				if err := txStore.MarkFineSettled(ctx, fine.FineID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if creditErr := ledger.wallet.CreditWallet(ctx, ownerID, total); creditErr != nil {
				return fmt.Errorf("settlement failed and wallet refund failed: %w", errors.Join(err, creditErr))
			}
			return err
		}
		return nil
	}()
	logOperation(ctx, ledger.logger, OperationLog{
		Operation: operationSettleAllWallet,
		ActorID:   ownerID,
		Amount:    total,
		Error:     operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return total, nil
}

// TotalUnsettled sums the owner's unsettled fines; zero when none exist.
func (ledger *Ledger) TotalUnsettled(ctx context.Context, ownerID AccountID) (Money, error) {
	return ledger.store.SumUnsettledFines(ctx, ownerID)
}

// OpenLoans lists the borrower's currently open loans.
func (ledger *Ledger) OpenLoans(ctx context.Context, borrowerID AccountID) ([]Loan, error) {
	return ledger.store.ListOpenLoans(ctx, borrowerID)
}

// LoanHistory lists every loan for the borrower, newest first.
func (ledger *Ledger) LoanHistory(ctx context.Context, borrowerID AccountID) ([]Loan, error) {
	return ledger.store.ListLoansByBorrower(ctx, borrowerID)
}

// FineHistory lists every fine for the owner, newest first.
func (ledger *Ledger) FineHistory(ctx context.Context, ownerID AccountID) ([]Fine, error) {
	return ledger.store.ListFinesByOwner(ctx, ownerID)
}

// UnsettledFines lists the owner's unsettled fines.
func (ledger *Ledger) UnsettledFines(ctx context.Context, ownerID AccountID) ([]Fine, error) {
	return ledger.store.ListUnsettledFines(ctx, ownerID)
}

// HasOpenObligations reports whether the account has any open loan or
// unsettled fine. Implements the Directory's PromotionGate.
func (ledger *Ledger) HasOpenObligations(ctx context.Context, accountID AccountID) (bool, error) {
	openCount, err := ledger.store.CountOpenLoans(ctx, accountID)
	if err != nil {
		return false, err
	}
	if openCount > 0 {
		return true, nil
	}
	return ledger.store.HasUnsettledFines(ctx, accountID)
}

// HasOpenLoanOnBook reports whether any borrower currently holds the book.
// Implements the Catalog's LoanActivity.
func (ledger *Ledger) HasOpenLoanOnBook(ctx context.Context, bookID BookID) (bool, error) {
	return ledger.store.HasOpenLoanOnBook(ctx, bookID)
}

func settleAll(ctx context.Context, store LedgerStore, ownerID AccountID) (Money, error) {
	unsettled, err := store.ListUnsettledFines(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(unsettled) == 0 {
		return 0, ErrNothingToSettle
	}
	var total Money
	for _, fine := range unsettled {
		if err := store.MarkFineSettled(ctx, fine.FineID); err != nil {
			return 0, err
		}
		total += fine.Amount
	}
	return total, nil
}
