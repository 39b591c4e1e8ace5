package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

// Catalog implements library.CatalogStore using GORM.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog returns a Catalog store backed by gorm.DB.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// WithTx executes fn within a transaction.
func (store *Catalog) WithTx(ctx context.Context, fn func(ctx context.Context, txStore library.CatalogStore) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Catalog{db: transaction})
	})
}

func (store *Catalog) InsertBook(ctx context.Context, book library.Book) error {
	row := BookRow{
		ISBN:            book.ID.String(),
		Title:           book.Title,
		Author:          book.Author,
		AvailableCopies: book.AvailableCopies,
		UnitCostCents:   book.UnitCost.Int64(),
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectBook, errorCodeDuplicate, library.ErrDuplicateBook)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBook, errorCodeInsert, err)
	}
	return nil
}

func (store *Catalog) GetBook(ctx context.Context, bookID library.BookID) (library.Book, error) {
	var row BookRow
	err := store.db.WithContext(ctx).
		Where("isbn = ?", bookID.String()).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return library.Book{}, wrapStoreError(errorSubjectBook, errorCodeGet, library.ErrBookNotFound)
		}
		return library.Book{}, wrapStoreError(errorSubjectBook, errorCodeGet, err)
	}
	book, err := mapBook(row)
	if err != nil {
		return library.Book{}, wrapStoreError(errorSubjectBook, errorCodeInvalid, err)
	}
	return book, nil
}

func (store *Catalog) UpdateBook(ctx context.Context, book library.Book) error {
	result := store.db.WithContext(ctx).
		Model(&BookRow{}).
		Where("isbn = ?", book.ID.String()).
		Updates(map[string]interface{}{
			"title":            book.Title,
			"author":           book.Author,
			"available_copies": book.AvailableCopies,
			"unit_cost_cents":  book.UnitCost.Int64(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBook, errorCodeUpdate, library.ErrBookNotFound)
	}
	return nil
}

func (store *Catalog) DeleteBook(ctx context.Context, bookID library.BookID) error {
	result := store.db.WithContext(ctx).
		Where("isbn = ?", bookID.String()).
		Delete(&BookRow{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBook, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBook, errorCodeDelete, library.ErrBookNotFound)
	}
	return nil
}

func (store *Catalog) ListBooks(ctx context.Context) ([]library.Book, error) {
	var rows []BookRow
	err := store.db.WithContext(ctx).
		Order("isbn ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBook, errorCodeList, err)
	}
	books := make([]library.Book, 0, len(rows))
	for _, row := range rows {
		book, err := mapBook(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBook, errorCodeInvalid, err)
		}
		books = append(books, book)
	}
	return books, nil
}

// AdjustAvailableCopies moves the copy count by delta, refusing to drop the
// count below zero.
func (store *Catalog) AdjustAvailableCopies(ctx context.Context, bookID library.BookID, delta int) error {
	result := store.db.WithContext(ctx).
		Model(&BookRow{}).
		Where("isbn = ? AND available_copies + ? >= 0", bookID.String(), delta).
		Update("available_copies", gorm.Expr("available_copies + ?", delta))
	if result.Error != nil {
		return wrapStoreError(errorSubjectBook, errorCodeAdjust, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := store.db.WithContext(ctx).Model(&BookRow{}).Where("isbn = ?", bookID.String()).Count(&count).Error; err != nil {
			return wrapStoreError(errorSubjectBook, errorCodeAdjust, err)
		}
		if count == 0 {
			return wrapStoreError(errorSubjectBook, errorCodeAdjust, library.ErrBookNotFound)
		}
		return wrapStoreError(errorSubjectBook, errorCodeAdjust, library.ErrBookNotAvailable)
	}
	return nil
}
