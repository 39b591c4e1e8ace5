package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

// Directory implements library.DirectoryStore using GORM.
type Directory struct {
	db *gorm.DB
}

// NewDirectory returns a Directory store backed by gorm.DB.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// WithTx executes fn within a transaction.
func (store *Directory) WithTx(ctx context.Context, fn func(ctx context.Context, txStore library.DirectoryStore) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Directory{db: transaction})
	})
}

func (store *Directory) InsertAccount(ctx context.Context, account library.Account) error {
	row := accountRowFrom(account)
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, library.ErrDuplicateAccount)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeInsert, err)
	}
	return nil
}

func (store *Directory) GetAccount(ctx context.Context, accountID library.AccountID) (library.Account, error) {
	var row AccountRow
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return library.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, library.ErrAccountNotFound)
		}
		return library.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	account, err := mapAccount(row)
	if err != nil {
		return library.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

func (store *Directory) UpdateAccount(ctx context.Context, account library.Account) error {
	result := store.db.WithContext(ctx).
		Model(&AccountRow{}).
		Where("account_id = ?", account.ID.String()).
		Updates(map[string]interface{}{
			"display_name":       account.DisplayName,
			"secret_hash":        account.SecretHash,
			"role":               account.Role.String(),
			"deposit_cents":      account.DepositBalance.Int64(),
			"wallet_cents":       account.WalletBalance.Int64(),
			"fine_ceiling_cents": account.FineCeiling.Int64(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, library.ErrAccountNotFound)
	}
	return nil
}

func (store *Directory) DeleteAccount(ctx context.Context, accountID library.AccountID) error {
	result := store.db.WithContext(ctx).
		Where("account_id = ?", accountID.String()).
		Delete(&AccountRow{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeDelete, library.ErrAccountNotFound)
	}
	return nil
}

func (store *Directory) ListAccounts(ctx context.Context) ([]library.Account, error) {
	var rows []AccountRow
	err := store.db.WithContext(ctx).
		Order("account_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	accounts := make([]library.Account, 0, len(rows))
	for _, row := range rows {
		account, err := mapAccount(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func accountRowFrom(account library.Account) AccountRow {
	return AccountRow{
		AccountID:        account.ID.String(),
		DisplayName:      account.DisplayName,
		SecretHash:       account.SecretHash,
		Role:             account.Role.String(),
		DepositCents:     account.DepositBalance.Int64(),
		WalletCents:      account.WalletBalance.Int64(),
		FineCeilingCents: account.FineCeiling.Int64(),
	}
}
