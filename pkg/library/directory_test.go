package library

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterSeedsBorrowerDeposit(test *testing.T) {
	test.Parallel()
	f := newFixture(test)

	borrower := f.mustRegister(test, "reader@example.com", RoleBorrower)
	if borrower.DepositBalance != 150000 {
		test.Fatalf("expected deposit 150000, got %d", borrower.DepositBalance)
	}
	if borrower.WalletBalance != 0 {
		test.Fatalf("expected empty wallet, got %d", borrower.WalletBalance)
	}
	if borrower.FineCeiling != 100000 {
		test.Fatalf("expected default fine ceiling 100000, got %d", borrower.FineCeiling)
	}

	admin := f.mustRegister(test, "admin@example.com", RoleAdmin)
	if admin.DepositBalance != 0 {
		test.Fatalf("expected zero deposit for admin, got %d", admin.DepositBalance)
	}
}

func TestRegisterRejectsDuplicates(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)

	_, err := f.directory.Register(context.Background(), mustAccountID(test, "reader@example.com"), "Reader", "secret", RoleBorrower)
	if !errors.Is(err, ErrDuplicateAccount) {
		test.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestRegisterNeverStoresPlaintextSecret(test *testing.T) {
	test.Parallel()
	f := newFixture(test)

	account, err := f.directory.Register(context.Background(), mustAccountID(test, "reader@example.com"), "Reader", "hunter2", RoleBorrower)
	if err != nil {
		test.Fatalf("register: %v", err)
	}
	if account.SecretHash == "hunter2" || account.SecretHash == "" {
		test.Fatalf("secret must be stored as a hash")
	}
}

func TestAuthenticate(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)

	account, err := f.directory.Authenticate(context.Background(), mustAccountID(test, "reader@example.com"), "secret-reader@example.com")
	if err != nil {
		test.Fatalf("authenticate: %v", err)
	}
	if account.ID != mustAccountID(test, "reader@example.com") {
		test.Fatalf("unexpected account: %+v", account)
	}

	_, err = f.directory.Authenticate(context.Background(), mustAccountID(test, "reader@example.com"), "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		test.Fatalf("expected ErrInvalidCredentials for bad secret, got %v", err)
	}
	_, err = f.directory.Authenticate(context.Background(), mustAccountID(test, "ghost@example.com"), "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		test.Fatalf("expected ErrInvalidCredentials for unknown id, got %v", err)
	}
}

func TestPromoteBlockedByOpenLoan(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustAddBook(test, "978-1", "Clean Code", "Robert Martin", 1, 280000)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	f.mustBorrow(test, "reader@example.com", "978-1")

	err := f.directory.Promote(context.Background(), mustAccountID(test, "reader@example.com"))
	if !errors.Is(err, ErrNotEligible) {
		test.Fatalf("expected ErrNotEligible with open loan, got %v", err)
	}
}

func TestPromoteBlockedByUnsettledFine(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	if _, err := f.ledger.ReportLostCard(context.Background(), mustAccountID(test, "reader@example.com")); err != nil {
		test.Fatalf("report lost card: %v", err)
	}

	err := f.directory.Promote(context.Background(), mustAccountID(test, "reader@example.com"))
	if !errors.Is(err, ErrNotEligible) {
		test.Fatalf("expected ErrNotEligible with unpaid fine, got %v", err)
	}
}

func TestPromotePreservesBalances(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	reader := mustAccountID(test, "reader@example.com")
	if err := f.directory.CreditWallet(context.Background(), reader, 2500); err != nil {
		test.Fatalf("credit wallet: %v", err)
	}

	if err := f.directory.Promote(context.Background(), reader); err != nil {
		test.Fatalf("promote: %v", err)
	}
	account, err := f.directory.Get(context.Background(), reader)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if account.Role != RoleAdmin {
		test.Fatalf("expected admin role, got %s", account.Role)
	}
	if account.WalletBalance != 2500 {
		test.Fatalf("wallet not preserved: %d", account.WalletBalance)
	}
	if account.DepositBalance != 150000 {
		test.Fatalf("deposit not preserved: %d", account.DepositBalance)
	}

	err = f.directory.Promote(context.Background(), reader)
	if !errors.Is(err, ErrNotEligible) {
		test.Fatalf("expected ErrNotEligible for an admin, got %v", err)
	}
}

func TestCreditWalletRejectsNonPositive(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)

	err := f.directory.CreditWallet(context.Background(), mustAccountID(test, "reader@example.com"), 0)
	if !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestDebitWalletInsufficientFunds(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)
	reader := mustAccountID(test, "reader@example.com")
	if err := f.directory.CreditWallet(context.Background(), reader, 100); err != nil {
		test.Fatalf("credit wallet: %v", err)
	}

	err := f.directory.DebitWallet(context.Background(), reader, 200)
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	account, err := f.directory.Get(context.Background(), reader)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if account.WalletBalance != 100 {
		test.Fatalf("failed debit must not change balance, got %d", account.WalletBalance)
	}
}

func TestDirectoryRemove(test *testing.T) {
	test.Parallel()
	f := newFixture(test)
	f.mustRegister(test, "reader@example.com", RoleBorrower)

	if err := f.directory.Remove(context.Background(), mustAccountID(test, "reader@example.com")); err != nil {
		test.Fatalf("remove: %v", err)
	}
	err := f.directory.Remove(context.Background(), mustAccountID(test, "reader@example.com"))
	if !errors.Is(err, ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
