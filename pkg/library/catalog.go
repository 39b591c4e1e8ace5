package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LoanActivity is the ledger view the Catalog consults before destructive
// mutations. A book with an open loan cannot be removed.
type LoanActivity interface {
	HasOpenLoanOnBook(ctx context.Context, bookID BookID) (bool, error)
}

// Catalog owns the set of books and their available copy counts.
type Catalog struct {
	store        CatalogStore
	loanActivity LoanActivity
	logger       OperationLogger
}

// NewCatalog wires a Catalog.
func NewCatalog(store CatalogStore, options ...CatalogOption) (*Catalog, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: catalog store dependency is nil", ErrInvalidServiceConfig)
	}
	catalog := &Catalog{store: store}
	for _, option := range options {
		if option != nil {
			option(catalog)
		}
	}
	return catalog, nil
}

// BindLoanActivity attaches the ledger view used by Remove. The ledger is
// constructed after the catalog, so this cannot be a constructor argument.
func (catalog *Catalog) BindLoanActivity(loanActivity LoanActivity) {
	catalog.loanActivity = loanActivity
}

// BookPatch carries the mutable book fields for Modify; nil fields are left
// untouched.
type BookPatch struct {
	Title           *string
	Author          *string
	AvailableCopies *int
	UnitCost        *Money
}

// Add inserts a new book; fails with ErrDuplicateBook when the id is taken.
func (catalog *Catalog) Add(ctx context.Context, book Book) error {
	operationError := func() error {
		if err := validateBook(book); err != nil {
			return err
		}
		return catalog.store.InsertBook(ctx, book)
	}()
	logOperation(ctx, catalog.logger, OperationLog{
		Operation: operationAddBook,
		BookID:    book.ID,
		Error:     operationError,
	})
	return operationError
}

// Modify patches an existing book; fails with ErrBookNotFound.
func (catalog *Catalog) Modify(ctx context.Context, bookID BookID, patch BookPatch) error {
	operationError := catalog.store.WithTx(ctx, func(ctx context.Context, txStore CatalogStore) error {
		book, err := txStore.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			book.Title = *patch.Title
		}
		if patch.Author != nil {
			book.Author = *patch.Author
		}
		if patch.AvailableCopies != nil {
			book.AvailableCopies = *patch.AvailableCopies
		}
		if patch.UnitCost != nil {
			book.UnitCost = *patch.UnitCost
		}
		if err := validateBook(book); err != nil {
			return err
		}
		return txStore.UpdateBook(ctx, book)
	})
	logOperation(ctx, catalog.logger, OperationLog{
		Operation: operationModifyBook,
		BookID:    bookID,
		Error:     operationError,
	})
	return operationError
}

// Remove deletes a book; fails with ErrBookNotFound, or ErrBookInUse while an
// open loan exists on it.
func (catalog *Catalog) Remove(ctx context.Context, bookID BookID) error {
	operationError := func() error {
		if catalog.loanActivity == nil {
			return fmt.Errorf("%w: loan activity view is not bound", ErrInvalidServiceConfig)
		}
		if _, err := catalog.store.GetBook(ctx, bookID); err != nil {
			return err
		}
		inUse, err := catalog.loanActivity.HasOpenLoanOnBook(ctx, bookID)
		if err != nil {
			return err
		}
		if inUse {
			return ErrBookInUse
		}
		return catalog.store.DeleteBook(ctx, bookID)
	}()
	logOperation(ctx, catalog.logger, OperationLog{
		Operation: operationRemoveBook,
		BookID:    bookID,
		Error:     operationError,
	})
	return operationError
}

// Get returns the book with the exact id; fails with ErrBookNotFound.
func (catalog *Catalog) Get(ctx context.Context, bookID BookID) (Book, error) {
	return catalog.store.GetBook(ctx, bookID)
}

// Find resolves a search term to a single book: exact id first, then the
// first title-substring match.
func (catalog *Catalog) Find(ctx context.Context, term string) (Book, error) {
	if bookID, err := NewBookID(term); err == nil {
		if book, err := catalog.store.GetBook(ctx, bookID); err == nil {
			return book, nil
		}
	}
	matches, err := catalog.SearchByTitle(ctx, term)
	if err != nil {
		return Book{}, err
	}
	if len(matches) == 0 {
		return Book{}, ErrBookNotFound
	}
	return matches[0], nil
}

// SearchByTitle returns books whose title contains the term, case-insensitive.
func (catalog *Catalog) SearchByTitle(ctx context.Context, term string) ([]Book, error) {
	return catalog.search(ctx, term, func(book Book) string { return book.Title })
}

// SearchByAuthor returns books whose author contains the term, case-insensitive.
func (catalog *Catalog) SearchByAuthor(ctx context.Context, term string) ([]Book, error) {
	return catalog.search(ctx, term, func(book Book) string { return book.Author })
}

func (catalog *Catalog) search(ctx context.Context, term string, field func(Book) string) ([]Book, error) {
	books, err := catalog.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	matches := make([]Book, 0, len(books))
	for _, book := range books {
		if strings.Contains(strings.ToLower(field(book)), needle) {
			matches = append(matches, book)
		}
	}
	return matches, nil
}

// SortedByTitle returns all books in case-insensitive title order.
func (catalog *Catalog) SortedByTitle(ctx context.Context) ([]Book, error) {
	books, err := catalog.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		return strings.ToLower(books[i].Title) < strings.ToLower(books[j].Title)
	})
	return books, nil
}

// SortedByAvailability returns all books by descending copy count.
func (catalog *Catalog) SortedByAvailability(ctx context.Context) ([]Book, error) {
	books, err := catalog.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].AvailableCopies > books[j].AvailableCopies
	})
	return books, nil
}

// BelowThreshold returns books with at most the given number of available
// copies, ascending by count.
func (catalog *Catalog) BelowThreshold(ctx context.Context, threshold int) ([]Book, error) {
	books, err := catalog.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]Book, 0, len(books))
	for _, book := range books {
		if book.AvailableCopies <= threshold {
			low = append(low, book)
		}
	}
	sort.SliceStable(low, func(i, j int) bool {
		return low[i].AvailableCopies < low[j].AvailableCopies
	})
	return low, nil
}

// TakeCopy removes one available copy for a new loan; fails with
// ErrBookNotAvailable when none remain.
func (catalog *Catalog) TakeCopy(ctx context.Context, bookID BookID) error {
	return catalog.store.AdjustAvailableCopies(ctx, bookID, -1)
}

// ReturnCopy restores one available copy after a return.
func (catalog *Catalog) ReturnCopy(ctx context.Context, bookID BookID) error {
	return catalog.store.AdjustAvailableCopies(ctx, bookID, 1)
}

func validateBook(book Book) error {
	if book.ID == (BookID{}) {
		return fmt.Errorf("%w: missing id", ErrInvalidBook)
	}
	if strings.TrimSpace(book.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidBook)
	}
	if book.AvailableCopies < 0 {
		return fmt.Errorf("%w: negative copy count", ErrInvalidBook)
	}
	if book.UnitCost <= 0 {
		return fmt.Errorf("%w: unit cost must be positive", ErrInvalidBook)
	}
	return nil
}
