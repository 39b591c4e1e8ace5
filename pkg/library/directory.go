package library

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PromotionGate is the ledger view the Directory consults before promoting a
// borrower. Promotion is blocked while the account has open loans or
// unsettled fines.
type PromotionGate interface {
	HasOpenObligations(ctx context.Context, accountID AccountID) (bool, error)
}

// Directory owns the set of accounts, their roles, deposits and wallets.
type Directory struct {
	store         DirectoryStore
	promotionGate PromotionGate
	logger        OperationLogger
}

// NewDirectory wires a Directory.
func NewDirectory(store DirectoryStore, options ...DirectoryOption) (*Directory, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: directory store dependency is nil", ErrInvalidServiceConfig)
	}
	directory := &Directory{store: store}
	for _, option := range options {
		if option != nil {
			option(directory)
		}
	}
	return directory, nil
}

// BindPromotionGate attaches the ledger view used by Promote. The ledger is
// constructed after the directory, so this cannot be a constructor argument.
func (directory *Directory) BindPromotionGate(promotionGate PromotionGate) {
	directory.promotionGate = promotionGate
}

// Register creates an account; fails with ErrDuplicateAccount when the id is
// taken. Borrower accounts are seeded with the standard security deposit. The
// secret is stored only as a bcrypt hash.
func (directory *Directory) Register(ctx context.Context, accountID AccountID, displayName string, secret string, role Role) (Account, error) {
	var account Account
	operationError := func() error {
		if strings.TrimSpace(secret) == "" {
			return fmt.Errorf("%w: empty secret", ErrInvalidCredentials)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return WrapError(operationRegister, "secret", "hash", err)
		}
		deposit := Money(0)
		if role == RoleBorrower {
			deposit = borrowerDepositSeedCents
		}
		account = Account{
			ID:             accountID,
			DisplayName:    displayName,
			SecretHash:     string(hash),
			Role:           role,
			DepositBalance: deposit,
			WalletBalance:  0,
			FineCeiling:    defaultFineCeilingCents,
		}
		return directory.store.InsertAccount(ctx, account)
	}()
	logOperation(ctx, directory.logger, OperationLog{
		Operation: operationRegister,
		ActorID:   accountID,
		Error:     operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

// Authenticate checks the secret against the stored hash and returns the
// account; any mismatch or unknown id fails with ErrInvalidCredentials.
func (directory *Directory) Authenticate(ctx context.Context, accountID AccountID, secret string) (Account, error) {
	account, err := directory.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// Promote converts a borrower to an administrator, preserving both balances.
// Fails with ErrNotEligible while the account has open loans or unsettled
// fines, or when it is not a borrower.
func (directory *Directory) Promote(ctx context.Context, accountID AccountID) error {
	operationError := func() error {
		if directory.promotionGate == nil {
			return fmt.Errorf("%w: promotion gate is not bound", ErrInvalidServiceConfig)
		}
		account, err := directory.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Role != RoleBorrower {
			return ErrNotEligible
		}
		blocked, err := directory.promotionGate.HasOpenObligations(ctx, accountID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrNotEligible
		}
		account.Role = RoleAdmin
		return directory.store.UpdateAccount(ctx, account)
	}()
	logOperation(ctx, directory.logger, OperationLog{
		Operation: operationPromote,
		ActorID:   accountID,
		Error:     operationError,
	})
	return operationError
}

// Remove deletes an account; fails with ErrAccountNotFound.
func (directory *Directory) Remove(ctx context.Context, accountID AccountID) error {
	operationError := func() error {
		if _, err := directory.store.GetAccount(ctx, accountID); err != nil {
			return err
		}
		return directory.store.DeleteAccount(ctx, accountID)
	}()
	logOperation(ctx, directory.logger, OperationLog{
		Operation: operationRemoveAccount,
		ActorID:   accountID,
		Error:     operationError,
	})
	return operationError
}

// CreditWallet tops up the spendable balance; the amount must be positive.
func (directory *Directory) CreditWallet(ctx context.Context, accountID AccountID, amount Money) error {
	operationError := directory.store.WithTx(ctx, func(ctx context.Context, txStore DirectoryStore) error {
		if amount <= 0 {
			return fmt.Errorf("%w: credit must be greater than zero", ErrInvalidAmount)
		}
		account, err := txStore.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		account.WalletBalance += amount
		return txStore.UpdateAccount(ctx, account)
	})
	logOperation(ctx, directory.logger, OperationLog{
		Operation: operationCreditWallet,
		ActorID:   accountID,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// DebitWallet atomically decrements the spendable balance; fails with
// ErrInsufficientFunds when the wallet cannot cover the amount.
func (directory *Directory) DebitWallet(ctx context.Context, accountID AccountID, amount Money) error {
	operationError := directory.store.WithTx(ctx, func(ctx context.Context, txStore DirectoryStore) error {
		if amount <= 0 {
			return fmt.Errorf("%w: debit must be greater than zero", ErrInvalidAmount)
		}
		account, err := txStore.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.WalletBalance < amount {
			return ErrInsufficientFunds
		}
		account.WalletBalance -= amount
		return txStore.UpdateAccount(ctx, account)
	})
	logOperation(ctx, directory.logger, OperationLog{
		Operation: operationDebitWallet,
		ActorID:   accountID,
		Amount:    amount,
		Error:     operationError,
	})
	return operationError
}

// Get returns the account with the exact id; fails with ErrAccountNotFound.
func (directory *Directory) Get(ctx context.Context, accountID AccountID) (Account, error) {
	return directory.store.GetAccount(ctx, accountID)
}

// List returns every account.
func (directory *Directory) List(ctx context.Context) ([]Account, error) {
	return directory.store.ListAccounts(ctx)
}

// Empty reports whether no accounts exist yet; the caller bootstraps a
// default administrator on first run.
func (directory *Directory) Empty(ctx context.Context) (bool, error) {
	accounts, err := directory.store.ListAccounts(ctx)
	if err != nil {
		return false, err
	}
	return len(accounts) == 0, nil
}
